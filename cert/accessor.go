// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package cert holds the narrow Authenticode surface this core exposes
// without performing cryptographic verification, per the non-goal that
// excludes signature validation from scope: the certificate table is
// located and its raw PKCS#7 blob handed back (see security.go, built on
// go.mozilla.org/pkcs7), but trust-chain validation is left to a caller
// willing to carry that dependency and its policy decisions.
package cert

import "crypto/x509"

// Accessor is the read-only surface over a structurally-decoded
// Authenticode signature.
type Accessor interface {
	// Certificates returns the signer and any intermediate certificates
	// embedded in the PKCS#7 blob, in on-disk order.
	Certificates() []*x509.Certificate

	// SignerSerialNumber returns the signing certificate's serial number
	// as a decimal string, or "" if the blob has no signer info.
	SignerSerialNumber() string
}
