package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/remote"
	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

// ----- Fake backend -----

var errBoom = errors.New("boom")

type fakeBackend struct {
	mu sync.Mutex

	merchants []remote.MerchantRow
	// pages, when set, is served page by page instead of slicing merchants.
	pages   [][]remote.MerchantRow
	details map[domain.ID]remote.MerchantRow
	recos   []remote.RecommendationRow

	listErr   error
	failPage  int // page index that fails when listErr is set; -1 means all
	getErr    error
	writeErr  error
	recoErr   error
	getGate   chan struct{}
	getCalls  atomic.Int32
	listCalls [][2]int

	// doneGate blocks SetRecommendationDone until closed; doneArrived
	// receives one value per call that reached it.
	doneGate    chan struct{}
	doneArrived chan struct{}
	doneValues  []bool

	// beforeItemUpdate runs at the start of UpdateMenuItem, outside mu.
	beforeItemUpdate func()

	calls   []string
	updates []remote.MerchantUpdate
	nextID  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{details: map[domain.ID]remote.MerchantRow{}, failPage: -1}
}

func (f *fakeBackend) record(op string) {
	f.calls = append(f.calls, op)
}

func (f *fakeBackend) newID(prefix string) domain.ID {
	f.nextID++
	return domain.ID(fmt.Sprintf("%s-%d", prefix, f.nextID))
}

func (f *fakeBackend) ListMerchants(_ context.Context, from, to int) ([]remote.MerchantRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := len(f.listCalls)
	f.listCalls = append(f.listCalls, [2]int{from, to})
	if f.listErr != nil && (f.failPage < 0 || f.failPage == page) {
		return nil, f.listErr
	}
	if f.pages != nil {
		if page >= len(f.pages) {
			return nil, nil
		}
		return append([]remote.MerchantRow(nil), f.pages[page]...), nil
	}
	if from >= len(f.merchants) {
		return nil, nil
	}
	end := to + 1
	if end > len(f.merchants) {
		end = len(f.merchants)
	}
	return append([]remote.MerchantRow(nil), f.merchants[from:end]...), nil
}

func (f *fakeBackend) GetMerchant(ctx context.Context, id domain.ID) (remote.MerchantRow, error) {
	f.getCalls.Add(1)
	if f.getGate != nil {
		select {
		case <-f.getGate:
		case <-ctx.Done():
			return remote.MerchantRow{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return remote.MerchantRow{}, f.getErr
	}
	row, ok := f.details[id]
	if !ok {
		return remote.MerchantRow{}, remote.ErrNotFound
	}
	return row, nil
}

func (f *fakeBackend) InsertMerchant(_ context.Context, in remote.MerchantInsert) (remote.MerchantRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertMerchant")
	if f.writeErr != nil {
		return remote.MerchantRow{}, f.writeErr
	}
	return remote.MerchantRow{ID: f.newID("m"), Name: in.Name, Category: in.Category, Logo: in.Logo, Phone: in.Phone, WhatsApp: in.WhatsApp}, nil
}

func (f *fakeBackend) UpdateMerchant(_ context.Context, _ domain.ID, u remote.MerchantUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateMerchant")
	f.updates = append(f.updates, u)
	return f.writeErr
}

func (f *fakeBackend) DeleteMerchant(_ context.Context, _ domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteMerchant")
	return f.writeErr
}

func (f *fakeBackend) InsertMenuItem(_ context.Context, in remote.MenuItemInsert) (remote.MenuItemRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertMenuItem")
	if f.writeErr != nil {
		return remote.MenuItemRow{}, f.writeErr
	}
	return remote.MenuItemRow{ID: f.newID("i"), Name: in.Name, Price: remote.Price(in.Price), MerchantID: in.MerchantID}, nil
}

func (f *fakeBackend) UpdateMenuItem(_ context.Context, _ domain.ID, _ remote.MenuItemUpdate) error {
	if f.beforeItemUpdate != nil {
		f.beforeItemUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateMenuItem")
	return f.writeErr
}

func (f *fakeBackend) DeleteMenuItem(_ context.Context, _ domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteMenuItem")
	return f.writeErr
}

func (f *fakeBackend) InsertMenuImage(_ context.Context, in remote.MenuImageInsert) (remote.MenuImageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertMenuImage")
	if f.writeErr != nil {
		return remote.MenuImageRow{}, f.writeErr
	}
	return remote.MenuImageRow{ID: f.newID("img"), ImageURL: in.ImageURL, MerchantID: in.MerchantID}, nil
}

func (f *fakeBackend) DeleteMenuImage(_ context.Context, _ domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteMenuImage")
	return f.writeErr
}

func (f *fakeBackend) ListRecommendations(_ context.Context, _ int) ([]remote.RecommendationRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recoErr != nil {
		return nil, f.recoErr
	}
	return append([]remote.RecommendationRow(nil), f.recos...), nil
}

func (f *fakeBackend) InsertRecommendation(_ context.Context, in remote.RecommendationInsert) (remote.RecommendationRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertRecommendation")
	if f.writeErr != nil {
		return remote.RecommendationRow{}, f.writeErr
	}
	return remote.RecommendationRow{ID: f.newID("r"), Name: in.Name, Contact: in.Contact, Message: in.Message, Done: in.Done}, nil
}

func (f *fakeBackend) SetRecommendationDone(ctx context.Context, _ domain.ID, done bool) error {
	if f.doneArrived != nil {
		f.doneArrived <- struct{}{}
	}
	if f.doneGate != nil {
		select {
		case <-f.doneGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetRecommendationDone")
	f.doneValues = append(f.doneValues, done)
	return f.writeErr
}

func (f *fakeBackend) DeleteRecommendation(_ context.Context, _ domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteRecommendation")
	return f.writeErr
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// ----- Fake blobs -----

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	deleteErr error
	putErr    error
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string][]byte{}} }

func (b *fakeBlobs) Put(_ context.Context, path string, r io.Reader, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = buf.Bytes()
	return nil
}

func (b *fakeBlobs) PublicURL(path string) string { return "https://cdn.test/menu-images/" + path }

func (b *fakeBlobs) Delete(_ context.Context, paths ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, paths...)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	for _, p := range paths {
		delete(b.objects, p)
	}
	return nil
}

// ----- Helpers -----

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var n atomic.Int64
	return func() time.Time { return t0.Add(time.Duration(n.Add(1)) * time.Millisecond) }
}

func merchantRows(n int) []remote.MerchantRow {
	rows := make([]remote.MerchantRow, n)
	for i := range rows {
		id := domain.ID(fmt.Sprintf("m%d", i+1))
		rows[i] = remote.MerchantRow{
			ID:       id,
			Name:     fmt.Sprintf("Merchant %d", i+1),
			Category: "Food",
			MenuItems: []remote.MenuItemRow{
				{ID: domain.ID(fmt.Sprintf("%s-i1", id)), Name: "Tea", Price: 2, MerchantID: id},
			},
		}
	}
	return rows
}

func newRemoteDirectory(t *testing.T, b *fakeBackend, blobs remote.Blobs) (*Directory, *snapshot.Memory) {
	t.Helper()
	mem := snapshot.NewMemory()
	d := NewDirectory(DirectoryOptions{
		Backend:  b,
		Blobs:    blobs,
		Store:    snapshot.New(mem, zerolog.Nop()),
		PageSize: 2,
		Timeout:  time.Second,
		Logger:   zerolog.Nop(),
		Clock:    fixedClock(),
	})
	return d, mem
}

func newLocalDirectory(t *testing.T, seed []domain.Merchant) (*Directory, *snapshot.Store) {
	t.Helper()
	store := snapshot.New(snapshot.NewMemory(), zerolog.Nop())
	if seed != nil {
		if err := snapshot.Set(context.Background(), store, snapshot.KeyMerchants, seed); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	d := NewDirectory(DirectoryOptions{Store: store, Logger: zerolog.Nop(), Clock: fixedClock()})
	d.LoadAll(context.Background())
	return d, store
}

func strPtr(s string) *string { return &s }
