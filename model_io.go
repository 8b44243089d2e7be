package gapgo

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hupe1980/gapgo/blobstore"
	"github.com/hupe1980/gapgo/gap"
	"github.com/hupe1980/gapgo/persistence"
)

// SaveModel writes a fitted model record to path. Arrays above the sidecar
// threshold land in .npy files next to the record.
func SaveModel(path string, model *gap.KRR, optFns ...persistence.SaverOption) error {
	return persistence.NewSaver(optFns...).Save(path, model)
}

// LoadModel reads a model record from path. Sidecar arrays are
// memory-mapped; call Close on the model to release them.
func LoadModel(path string) (*gap.KRR, error) {
	entity, err := persistence.Load(path)
	if err != nil {
		return nil, err
	}
	model, ok := entity.(*gap.KRR)
	if !ok {
		id := entity.ID()
		return nil, &ErrNotKRRModel{Got: id.Module + "/" + id.Class}
	}
	return model, nil
}

// PublishModel packs the record at recordPath (with its sidecars) into a
// single archive and uploads it to the store under name.
func PublishModel(ctx context.Context, store blobstore.Store, name, recordPath string, optFns ...func(o *blobstore.TransferOptions)) error {
	tmp, err := os.CreateTemp("", "gapgo-publish-*"+persistence.ArchiveExt)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := persistence.Pack(tmpPath, recordPath); err != nil {
		return err
	}
	return blobstore.UploadFile(ctx, store, name, tmpPath, optFns...)
}

// FetchModel downloads a packed model archive from the store, unpacks it
// into dir and loads the model. The record and its sidecars stay in dir so
// the returned model can keep its memory-mapped views.
func FetchModel(ctx context.Context, store blobstore.Store, name, dir string, optFns ...func(o *blobstore.TransferOptions)) (*gap.KRR, error) {
	archivePath := filepath.Join(dir, "model"+persistence.ArchiveExt)
	if err := blobstore.Download(ctx, store, name, archivePath, optFns...); err != nil {
		return nil, err
	}
	defer os.Remove(archivePath)

	recordPath, err := persistence.Unpack(archivePath, dir)
	if err != nil {
		return nil, err
	}
	return LoadModel(recordPath)
}
