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
	"strconv"
	"strings"
)

// ParseSize parses a php.ini style size such as "128M", "1k", "8MB" or "-1".
// Units are powers of 1024 and case-insensitive. A plain number is taken as bytes.
func ParseSize(size string) (int64, error) {
	s := strings.TrimSpace(size)
	if s == "" {
		return 0, fmt.Errorf("%q is not a valid size", size)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	upper := strings.ToUpper(s)
	if len(upper) > 2 && strings.HasSuffix(upper, "B") && strings.ContainsAny(upper[len(upper)-2:len(upper)-1], "KMGT") {
		upper = upper[:len(upper)-1]
	}

	var shift uint
	switch upper[len(upper)-1] {
	case 'K':
		shift = 10
	case 'M':
		shift = 20
	case 'G':
		shift = 30
	case 'T':
		shift = 40
	default:
		return 0, fmt.Errorf("%q is not a valid size", size)
	}

	n, err := strconv.ParseInt(upper[:len(upper)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid size", size)
	}
	if n <= 0 {
		return 0, fmt.Errorf("expect %q to be higher than zero", size)
	}
	if n > (1<<63-1)>>shift {
		return 0, fmt.Errorf("%q overflows", size)
	}
	return n << shift, nil
}
