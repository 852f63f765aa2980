package util

import (
	"context"
	"errors"
	"os"

	"github.com/viant/afs"
	_ "github.com/viant/afsc/s3"
)

var FileSystem = afs.New()

// WriteFileBytes writes data to a local path or an s3:// URL.
func WriteFileBytes(ctx context.Context, destination string, data []byte) error {
	writer, err := FileSystem.NewWriter(ctx, destination, os.ModePerm)
	if err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		return errors.Join(err, writer.Close())
	}
	return writer.Close()
}
