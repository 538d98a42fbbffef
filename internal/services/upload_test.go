package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUploadMenuImage(t *testing.T) {
	d, _, blobs := syncedRemote(t)
	img, err := d.UploadMenuImage(context.Background(), "m1", Upload{
		Filename:    "menu.PNG",
		ContentType: "image/png",
		Body:        strings.NewReader("png-bytes"),
	})
	if err != nil {
		t.Fatalf("UploadMenuImage: %v", err)
	}
	if !strings.HasPrefix(img.ImageURL, "https://cdn.test/menu-images/") || !strings.HasSuffix(img.ImageURL, ".png") {
		t.Fatalf("unexpected url %q", img.ImageURL)
	}
	if len(blobs.objects) != 1 {
		t.Fatalf("objects = %d", len(blobs.objects))
	}
	m, _ := d.Merchant("m1")
	if len(m.MenuImages) != 1 || m.MenuImages[0].ID != img.ID {
		t.Fatalf("image not added: %+v", m.MenuImages)
	}
}

func TestUploadMenuImage_RowFailureRemovesObject(t *testing.T) {
	d, b, blobs := syncedRemote(t)
	b.writeErr = errBoom
	_, err := d.UploadMenuImage(context.Background(), "m1", Upload{Filename: "a.jpg", Body: strings.NewReader("x")})
	if !errors.Is(err, ErrRemoteRequestFailed) {
		t.Fatalf("want ErrRemoteRequestFailed, got %v", err)
	}
	if len(blobs.objects) != 0 || len(blobs.deleted) != 1 {
		t.Fatalf("orphan object left: objects=%d deleted=%v", len(blobs.objects), blobs.deleted)
	}
}

func TestUploadLogo_ReplacesPrevious(t *testing.T) {
	d, _, blobs := syncedRemote(t)
	ctx := context.Background()

	first, err := d.UploadLogo(ctx, "m1", Upload{Filename: "a.jpg", Body: strings.NewReader("1")})
	if err != nil {
		t.Fatal(err)
	}
	if first.Logo == nil || !strings.Contains(*first.Logo, "logo-m1-") {
		t.Fatalf("unexpected logo %v", first.Logo)
	}
	second, err := d.UploadLogo(ctx, "m1", Upload{ContentType: "image/webp", Body: strings.NewReader("2")})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(*second.Logo, ".webp") {
		t.Fatalf("unexpected logo %q", *second.Logo)
	}
	if len(blobs.deleted) != 1 || !strings.HasPrefix(blobs.deleted[0], "logo-m1-") {
		t.Fatalf("old logo not deleted: %v", blobs.deleted)
	}
	if len(blobs.objects) != 1 {
		t.Fatalf("objects = %d", len(blobs.objects))
	}
}

func TestUpload_NoBlobStore(t *testing.T) {
	b := newFakeBackend()
	b.merchants = merchantRows(1)
	d, _ := newRemoteDirectory(t, b, nil)
	d.LoadAll(context.Background())

	if _, err := d.UploadMenuImage(context.Background(), "m1", Upload{Body: strings.NewReader("x")}); !errors.Is(err, ErrBlobsUnavailable) {
		t.Fatalf("got %v", err)
	}
	if _, err := d.UploadLogo(context.Background(), "m1", Upload{Body: strings.NewReader("x")}); !errors.Is(err, ErrBlobsUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		up   Upload
		want string
	}{
		{Upload{Filename: "photo.JPEG"}, "jpeg"},
		{Upload{Filename: "noext", ContentType: "image/png"}, "png"},
		{Upload{ContentType: "image/svg+xml"}, "svg"},
		{Upload{ContentType: "image/webp; q=1"}, "webp"},
		{Upload{}, "jpg"},
		{Upload{Filename: "../../etc/passwd"}, "jpg"},
	}
	for _, tc := range tests {
		if got := extension(tc.up); got != tc.want {
			t.Errorf("extension(%+v) = %q, want %q", tc.up, got, tc.want)
		}
	}
}
