package pseudonym

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/researchportal/resultpipe/pkg/table"
)

const localPseudonymLength = 32

// LocalExchanger derives pseudonyms in-process as a keyed hash of project scope and identifier.
// The same identifier maps to the same pseudonym within a project and to unrelated pseudonyms
// across projects.
type LocalExchanger struct {
	secret []byte
	prefix string
}

var _ Exchanger = (*LocalExchanger)(nil)

func NewLocalExchanger(secret []byte, prefix string) (*LocalExchanger, error) {
	if len(secret) == 0 {
		return nil, errors.New("local pseudonymization requires a secret")
	}
	return &LocalExchanger{secret: append([]byte(nil), secret...), prefix: prefix}, nil
}

func (e *LocalExchanger) Exchange(ctx context.Context, ids table.IdentifierList, projectScope string) (table.PseudonymList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(table.PseudonymList, len(ids))
	for i, id := range ids {
		if id == "" {
			continue
		}

		mac := hmac.New(sha256.New, e.secret)
		mac.Write([]byte(projectScope))
		mac.Write([]byte{0})
		mac.Write([]byte(id))

		pseudonym := e.prefix + hex.EncodeToString(mac.Sum(nil))[:localPseudonymLength]
		out[i] = &pseudonym
	}
	return out, nil
}
