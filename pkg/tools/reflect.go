/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package tools

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/modern-go/reflect2"
)

var durationType = reflect.TypeOf(time.Duration(0))

type FnObj struct {
	Fn   func(reflect.StructField, reflect.Value, interface{}) error
	Data interface{}
}

// DoTagFunc applies every fn to each field of the struct v points to.
func DoTagFunc(v interface{}, fns []FnObj) error {
	if reflect2.IsNil(v) {
		return nil
	}

	vType := reflect2.TypeOf(v).Type1()
	if vType.Kind() != reflect.Ptr || vType.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("DoTagFunc expects a pointer to struct, got %s", vType)
	}

	indirect := reflect.Indirect(reflect.ValueOf(v))
	for i := 0; i < indirect.NumField(); i++ {
		field := indirect.Field(i)
		fieldStruct := vType.Elem().Field(i)

		for _, f := range fns {
			if err := f.Fn(fieldStruct, field, f.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetDefaultValueIfNil sets the value of the default tag on zero fields.
// Nested structs and non-nil struct pointers are walked recursively.
func SetDefaultValueIfNil(structField reflect.StructField, vValue reflect.Value, _ interface{}) error {
	if !vValue.CanSet() {
		return nil
	}

	def, hasDefault := structField.Tag.Lookup("default")
	switch vValue.Kind() {
	case reflect.Struct:
		t := structField.Type
		for i := 0; i < t.NumField(); i++ {
			if err := SetDefaultValueIfNil(t.Field(i), vValue.Field(i), nil); err != nil {
				return err
			}
		}
		return nil
	case reflect.Ptr:
		if vValue.IsNil() || vValue.Elem().Kind() != reflect.Struct {
			return nil
		}
		elem := vValue.Elem()
		for i := 0; i < elem.NumField(); i++ {
			if err := SetDefaultValueIfNil(elem.Type().Field(i), elem.Field(i), nil); err != nil {
				return err
			}
		}
		return nil
	}

	if !hasDefault || !vValue.IsZero() {
		return nil
	}

	switch vValue.Kind() {
	case reflect.Int64:
		if vValue.Type() == durationType {
			d, err := time.ParseDuration(def)
			if err != nil {
				return fmt.Errorf("field %s: %w", structField.Name, err)
			}
			vValue.SetInt(int64(d))
			return nil
		}
		fallthrough
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		v, err := strconv.ParseInt(def, 10, 64)
		if err != nil {
			return fmt.Errorf("field %s: %w", structField.Name, err)
		}
		vValue.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(def, 10, 64)
		if err != nil {
			return fmt.Errorf("field %s: %w", structField.Name, err)
		}
		vValue.SetUint(v)
	case reflect.String:
		vValue.SetString(def)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(def, 64)
		if err != nil {
			return fmt.Errorf("field %s: %w", structField.Name, err)
		}
		vValue.SetFloat(v)
	case reflect.Bool:
		fmt.Println("bool can't use Func[SetDefaultValueIfNil]")
	}
	return nil
}
