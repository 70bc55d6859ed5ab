package storagesvc

import (
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
)

// New returns the file storage driver selected by conf.Driver.
func New(conf core.StorageConfig) (core.FileStorage, error) {
	switch conf.Driver {
	case "", "local":
		return NewLocalStorage(conf.Root)
	case "sftp":
		return NewSFTPStorage(conf)
	default:
		return nil, errors.Errorf("unknown storage driver: %q", conf.Driver)
	}
}
