package mess

import (
	"context"
	"math/rand/v2"
	"strconv"
)

const (
	minIdentifierCode   = 100000
	identifierCodeRange = 900000
)

// CodeExistsFunc reports whether an identifier code is already assigned.
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

// GenerateIdentifierCode draws 6-digit codes uniformly until exists reports
// a free one. There is no attempt bound; cancelling ctx stops the search.
func GenerateIdentifierCode(ctx context.Context, exists CodeExistsFunc) (string, error) {
	return generateIdentifierCode(ctx, exists, rand.IntN)
}

func generateIdentifierCode(ctx context.Context, exists CodeExistsFunc, intn func(int) int) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code := strconv.Itoa(minIdentifierCode + intn(identifierCodeRange))
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
}
