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
package protocol

import (
	"net/textproto"
	"strings"
)

type field struct {
	name  string
	value string
}

// Header is an ordered, case-insensitive multimap of header fields.
// Methods never modify the receiver; With* return modified copies.
type Header struct {
	fields []field
}

// NewHeader builds a header from name, value pairs. A trailing odd name is ignored.
func NewHeader(pairs ...string) Header {
	h := Header{}
	for i := 0; i+1 < len(pairs); i += 2 {
		h.fields = append(h.fields, field{name: pairs[i], value: pairs[i+1]})
	}
	return h
}

func (h Header) Len() int {
	return len(h.fields)
}

func (h Header) Has(name string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return true
		}
	}
	return false
}

// Get returns the first value of name.
func (h Header) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return f.value
		}
	}
	return ""
}

func (h Header) Values(name string) []string {
	var values []string
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			values = append(values, f.value)
		}
	}
	return values
}

// Line joins all values of name with ", ".
func (h Header) Line(name string) string {
	return strings.Join(h.Values(name), ", ")
}

// With replaces every value of name. The field keeps the position of its first occurrence.
func (h Header) With(name, value string) Header {
	fields := make([]field, 0, len(h.fields)+1)
	replaced := false
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			if !replaced {
				fields = append(fields, field{name: name, value: value})
				replaced = true
			}
			continue
		}
		fields = append(fields, f)
	}
	if !replaced {
		fields = append(fields, field{name: name, value: value})
	}
	return Header{fields: fields}
}

func (h Header) WithAdded(name, value string) Header {
	fields := make([]field, len(h.fields), len(h.fields)+1)
	copy(fields, h.fields)
	return Header{fields: append(fields, field{name: name, value: value})}
}

func (h Header) Without(name string) Header {
	if !h.Has(name) {
		return h
	}
	fields := make([]field, 0, len(h.fields))
	for _, f := range h.fields {
		if !strings.EqualFold(f.name, name) {
			fields = append(fields, f)
		}
	}
	return Header{fields: fields}
}

// Each visits fields in order with their original spelling.
func (h Header) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// HasToken reports whether a comma separated value of name contains token, ignoring case.
func (h Header) HasToken(name, token string) bool {
	for _, v := range h.Values(name) {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

// Map returns the fields keyed by canonical name.
func (h Header) Map() map[string][]string {
	m := make(map[string][]string, len(h.fields))
	for _, f := range h.fields {
		key := textproto.CanonicalMIMEHeaderKey(f.name)
		m[key] = append(m[key], f.value)
	}
	return m
}
