package generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/models"
)

type fakeJob struct {
	mu       sync.Mutex
	id       string
	userID   primitive.ObjectID
	itemIDs  []primitive.ObjectID
	statuses []string
	lastErr  string
	imageKey string
	provider string
}

func (j *fakeJob) ID() string                    { return j.id }
func (j *fakeJob) UserID() primitive.ObjectID    { return j.userID }
func (j *fakeJob) ItemIDs() []primitive.ObjectID { return j.itemIDs }
func (j *fakeJob) Context() string               { return "a full outfit" }

func (j *fakeJob) SetStatus(ctx context.Context, status, errorMessage string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.statuses = append(j.statuses, status)
	j.lastErr = errorMessage
	return nil
}

func (j *fakeJob) SaveImage(ctx context.Context, imageKey, personImageKey, provider string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.imageKey = imageKey
	j.provider = provider
	return nil
}

func (j *fakeJob) finalStatus() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.statuses) == 0 {
		return ""
	}
	return j.statuses[len(j.statuses)-1]
}

type fakeText struct {
	out string
	err error
}

func (f *fakeText) Generate(ctx context.Context, systemPrompt, prompt string, temperature float32) (string, error) {
	return f.out, f.err
}

type fakeImages struct {
	mu      sync.Mutex
	results []*GenResult
	errs    []error
	calls   [][]Part
	panics  bool
}

func (f *fakeImages) Generate(ctx context.Context, parts []Part) (*GenResult, error) {
	if f.panics {
		panic("image service blew up")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, parts)
	idx := len(f.calls) - 1
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	var res *GenResult
	if idx < len(f.results) {
		res = f.results[idx]
	}
	return res, err
}

func (f *fakeImages) Provider() string { return "test-model" }

type fakeBlobs struct {
	mu     sync.Mutex
	data   map[string][]byte
	stored [][]byte
	broken map[string]bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: make(map[string][]byte), broken: make(map[string]bool)}
}

func (f *fakeBlobs) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, data)
	return "stored/render.jpg", nil
}

func (f *fakeBlobs) Fetch(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[key] {
		return nil, errors.New("fetch failed")
	}
	if data, ok := f.data[key]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeBlobs) URL(ctx context.Context, key string) (string, error) {
	return "https://" + key, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error { return nil }

type fakeUsers struct {
	key  string
	name string
	err  error
}

func (f *fakeUsers) PrimaryPhoto(ctx context.Context, userID primitive.ObjectID) (string, string, error) {
	return f.key, f.name, f.err
}

type fakeItems struct {
	items []models.Item
}

func (f *fakeItems) ItemsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Item, error) {
	return f.items, nil
}

func testItem(name, imageKey string) models.Item {
	item := models.Item{ID: primitive.NewObjectID(), Name: name, Category: models.CategoryTop}
	if imageKey != "" {
		item.Images = []models.ItemImage{{Key: imageKey, IsPrimary: true}}
	}
	return item
}

func testOrchestrator(images *fakeImages, blobs *fakeBlobs, users *fakeUsers, items []models.Item) *Orchestrator {
	return &Orchestrator{
		Text:   &fakeText{out: "wear it well"},
		Images: images,
		Blobs:  blobs,
		Users:  users,
		Items:  &fakeItems{items: items},
	}
}

func newTestJob() *fakeJob {
	return &fakeJob{
		id:      "job-1",
		userID:  primitive.NewObjectID(),
		itemIDs: []primitive.ObjectID{primitive.NewObjectID()},
	}
}

func TestRunHappyPath(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.data["photos/me.jpg"] = []byte("person")
	blobs.data["items/top.jpg"] = []byte("top")
	images := &fakeImages{results: []*GenResult{{ImageData: []byte("render")}}}
	o := testOrchestrator(images, blobs, &fakeUsers{key: "photos/me.jpg", name: "Ada"},
		[]models.Item{testItem("Silk Blouse", "items/top.jpg")})
	job := newTestJob()

	o.Run(context.Background(), job)

	assert.Equal(t, []string{models.StatusProcessing, models.StatusCompleted}, job.statuses)
	assert.Equal(t, "stored/render.jpg", job.imageKey)
	assert.Equal(t, "test-model", job.provider)
	require.Len(t, images.calls, 1)
	// prompt + person + one item reference
	assert.Len(t, images.calls[0], 3)
}

func TestRunRetriesSimplifiedWhenNoImageComesBack(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.data["photos/me.jpg"] = []byte("person")
	blobs.data["items/top.jpg"] = []byte("top")
	images := &fakeImages{results: []*GenResult{
		{Text: "here is a description instead"},
		{ImageData: []byte("render")},
	}}
	o := testOrchestrator(images, blobs, &fakeUsers{key: "photos/me.jpg", name: "Ada"},
		[]models.Item{testItem("Silk Blouse", "items/top.jpg")})
	job := newTestJob()

	o.Run(context.Background(), job)

	require.Len(t, images.calls, 2, "text-only response triggers one simplified retry")
	assert.Len(t, images.calls[1], 2, "retry carries only the prompt and the reference photo")
	assert.Equal(t, models.StatusCompleted, job.finalStatus())
	assert.Len(t, blobs.stored, 1)
}

func TestRunFailsWhenRetryAlsoReturnsNoImage(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.data["photos/me.jpg"] = []byte("person")
	images := &fakeImages{results: []*GenResult{{}, {}}}
	o := testOrchestrator(images, blobs, &fakeUsers{key: "photos/me.jpg", name: "Ada"},
		[]models.Item{testItem("Silk Blouse", "")})
	job := newTestJob()

	o.Run(context.Background(), job)

	assert.Equal(t, models.StatusFailed, job.finalStatus())
	assert.Contains(t, job.lastErr, "no image")
	assert.Empty(t, blobs.stored)
}

func TestRunFailsWithoutPrimaryPhoto(t *testing.T) {
	images := &fakeImages{}
	o := testOrchestrator(images, newFakeBlobs(), &fakeUsers{key: ""},
		[]models.Item{testItem("Silk Blouse", "")})
	job := newTestJob()

	o.Run(context.Background(), job)

	assert.Equal(t, models.StatusFailed, job.finalStatus())
	assert.Contains(t, job.lastErr, "no primary image")
	assert.Empty(t, images.calls, "no generation happens without a reference photo")
}

func TestRunProceedsWhenTextGenFails(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.data["photos/me.jpg"] = []byte("person")
	images := &fakeImages{results: []*GenResult{{ImageData: []byte("render")}}}
	o := testOrchestrator(images, blobs, &fakeUsers{key: "photos/me.jpg", name: "Ada"},
		[]models.Item{testItem("Silk Blouse", "")})
	o.Text = &fakeText{err: errors.New("model unavailable")}
	job := newTestJob()

	o.Run(context.Background(), job)

	assert.Equal(t, models.StatusCompleted, job.finalStatus(),
		"the static prompt keeps the pipeline alive")
}

func TestRunDegradesWhenItemImageFetchFails(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.data["photos/me.jpg"] = []byte("person")
	blobs.broken["items/top.jpg"] = true
	images := &fakeImages{results: []*GenResult{{ImageData: []byte("render")}}}
	o := testOrchestrator(images, blobs, &fakeUsers{key: "photos/me.jpg", name: "Ada"},
		[]models.Item{testItem("Silk Blouse", "items/top.jpg")})
	job := newTestJob()

	o.Run(context.Background(), job)

	assert.Equal(t, models.StatusCompleted, job.finalStatus())
	require.Len(t, images.calls, 1)
	assert.Len(t, images.calls[0], 2, "the failed reference is dropped, not fatal")
}

func TestRunCapsReferenceImages(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.data["photos/me.jpg"] = []byte("person")
	var items []models.Item
	for i := 0; i < 8; i++ {
		key := "items/" + string(rune('a'+i)) + ".jpg"
		blobs.data[key] = []byte("img")
		items = append(items, testItem("Piece", key))
	}
	images := &fakeImages{results: []*GenResult{{ImageData: []byte("render")}}}
	o := testOrchestrator(images, blobs, &fakeUsers{key: "photos/me.jpg", name: "Ada"}, items)
	job := newTestJob()

	o.Run(context.Background(), job)

	assert.Equal(t, models.StatusCompleted, job.finalStatus())
	require.Len(t, images.calls, 1)
	assert.LessOrEqual(t, len(images.calls[0]), 1+1+maxReferenceImages)
}

func TestRunRecoversFromPanic(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.data["photos/me.jpg"] = []byte("person")
	images := &fakeImages{panics: true}
	o := testOrchestrator(images, blobs, &fakeUsers{key: "photos/me.jpg", name: "Ada"},
		[]models.Item{testItem("Silk Blouse", "")})
	job := newTestJob()

	o.Run(context.Background(), job)

	assert.Equal(t, models.StatusFailed, job.finalStatus(),
		"a panic still lands the job in a terminal state")
	assert.Contains(t, job.lastErr, "internal error")
}
