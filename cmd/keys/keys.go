package keys

import (
	"errors"
	"fmt"
	"io"
	"strings"

	logger "github.com/sirupsen/logrus"
)

var ErrEmptySecret = errors.New("keys: nothing to encrypt")

type encrypter interface {
	EncryptString(plain string) (string, error)
}

// Keys seals a venue credential so it can be stored as an "enc:" value in
// PHEMEX_API_SECRET.
type Keys struct {
	Log    *logger.Entry
	Cipher encrypter
	Out    io.Writer
}

func (k *Keys) Encrypt(secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrEmptySecret
	}
	sealed, err := k.Cipher.EncryptString(secret)
	if err != nil {
		k.Log.WithError(err).Error("Failed to encrypt secret")
		return err
	}
	_, err = fmt.Fprintln(k.Out, sealed)
	return err
}
