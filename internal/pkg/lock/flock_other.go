//go:build !unix

package lock

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("file locking is only supported on Unix-like systems")

func tryLock(*os.File) error {
	return errUnsupported
}

func unlock(*os.File) error {
	return nil
}
