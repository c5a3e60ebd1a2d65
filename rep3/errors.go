//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrProtocolFault marks communication and consistency failures
	// during secure operations. A protocol fault aborts the joint
	// computation.
	ErrProtocolFault = errors.New("protocol fault")

	// ErrDivisionByZero is returned when a field or integer division
	// has a zero divisor. For secret divisors the parties learn only
	// that the divisor was zero.
	ErrDivisionByZero = errors.New("division by zero")
)

func fault(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrProtocolFault)
}

func faultf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrProtocolFault)
}
