package parse

import (
	"context"

	"tlog.app/go/errors"
)

type (
	// Num parses a decimal natural number into int.
	Num struct{}
)

func (Num) Parse(ctx context.Context, b []byte, st int) (x any, i int, err error) {
	i = st

	var v int

	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		d := int(b[i] - '0')

		if v > (1<<31-1-d)/10 {
			return nil, i, errors.New("number is too big")
		}

		v = v*10 + d
		i++
	}

	if i == st {
		return nil, st, errors.New("number expected")
	}

	if i < len(b) && isWord(b[i]) {
		return nil, i, errors.New("number expected")
	}

	return v, i, nil
}
