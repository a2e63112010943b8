// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import "testing"

// FuzzParse feeds arbitrary byte slices through the full parse pipeline,
// seeded with a valid minimal image plus a few malformed headers, to
// catch panics on malformed input that the unit tests don't happen to
// construct.
func FuzzParse(f *testing.F) {
	f.Add(buildMinimalPEImage())
	f.Add([]byte("MZ"))
	f.Add(make([]byte, 0))
	f.Add(make([]byte, 4096))

	f.Fuzz(func(t *testing.T, data []byte) {
		img, err := NewBytes(data, &Options{})
		if err != nil {
			return
		}
		_ = img.Parse()
	})
}
