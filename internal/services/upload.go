package services

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// Upload is an image file handed to UploadMenuImage or UploadLogo.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// UploadMenuImage stores the file in the object store and adds it to the
// merchant's menu images. The stored file is removed again when the image row
// cannot be written.
func (d *Directory) UploadMenuImage(ctx context.Context, merchantID domain.ID, up Upload) (domain.MenuImage, error) {
	if d.blobs == nil {
		return domain.MenuImage{}, ErrBlobsUnavailable
	}
	if _, ok := d.Merchant(merchantID); !ok {
		return domain.MenuImage{}, ErrMerchantNotFound
	}
	name := uuid.NewString() + "." + extension(up)
	if err := d.blobs.Put(ctx, name, up.Body, up.ContentType); err != nil {
		return domain.MenuImage{}, err
	}
	url := d.blobs.PublicURL(name)
	img, err := d.AddMenuImage(ctx, merchantID, url)
	if err != nil {
		d.deleteAsset(ctx, url)
		return domain.MenuImage{}, err
	}
	return img, nil
}

// UploadLogo stores the file and sets it as the merchant's logo. The previous
// logo file, if any, is deleted afterwards.
func (d *Directory) UploadLogo(ctx context.Context, merchantID domain.ID, up Upload) (domain.Merchant, error) {
	if d.blobs == nil {
		return domain.Merchant{}, ErrBlobsUnavailable
	}
	m, ok := d.Merchant(merchantID)
	if !ok {
		return domain.Merchant{}, ErrMerchantNotFound
	}
	name := "logo-" + safeSegment(merchantID.String()) + "-" + uuid.NewString()[:8] + "." + extension(up)
	if err := d.blobs.Put(ctx, name, up.Body, up.ContentType); err != nil {
		return domain.Merchant{}, err
	}
	url := d.blobs.PublicURL(name)
	updated, err := d.UpdateMerchant(ctx, merchantID, domain.MerchantPatch{Logo: domain.SetTo(url)})
	if err != nil {
		d.deleteAsset(ctx, url)
		return domain.Merchant{}, err
	}
	if m.Logo != nil && *m.Logo != url {
		d.deleteAsset(ctx, *m.Logo)
	}
	return updated, nil
}

// extension picks the file extension from the file name, then the content
// subtype, and falls back to jpg.
func extension(up Upload) string {
	if ext := strings.ToLower(safeSegment(filepath.Ext(up.Filename))); ext != "" {
		return ext
	}
	if _, sub, ok := strings.Cut(up.ContentType, "/"); ok {
		sub, _, _ = strings.Cut(sub, ";")
		sub, _, _ = strings.Cut(sub, "+")
		if ext := strings.ToLower(safeSegment(sub)); ext != "" {
			return ext
		}
	}
	return "jpg"
}

func safeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, s)
}
