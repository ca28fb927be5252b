package generation

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/nimastyle/nima-backend/models"
)

const maxReferenceImages = 5

// Orchestrator runs one render job end to end. Run always leaves the job in
// a terminal state and never propagates job failure to the scheduler;
// failure is data on the record, discovered by status polling.
type Orchestrator struct {
	Text   TextGenerator
	Images ImageGenerator
	Blobs  BlobStore
	Users  UserDirectory
	Items  ItemLoader

	// FetchConcurrency bounds parallel reference-image fetches. Zero
	// means 5.
	FetchConcurrency int
}

// Run executes the render pipeline for one job.
func (o *Orchestrator) Run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Generation job %s panicked: %v", job.ID(), r)
			o.fail(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := job.SetStatus(ctx, models.StatusProcessing, ""); err != nil {
		log.Printf("Generation job %s could not enter processing: %v", job.ID(), err)
		return
	}

	photoKey, firstName, err := o.Users.PrimaryPhoto(ctx, job.UserID())
	if err != nil {
		o.fail(ctx, job, fmt.Sprintf("failed to load profile: %v", err))
		return
	}
	if photoKey == "" {
		o.fail(ctx, job, "no primary image: add a profile photo to generate renders")
		return
	}

	personImage, err := o.Blobs.Fetch(ctx, photoKey)
	if err != nil {
		o.fail(ctx, job, fmt.Sprintf("failed to fetch reference photo: %v", err))
		return
	}

	items, err := o.Items.ItemsByIDs(ctx, job.ItemIDs())
	if err != nil {
		o.fail(ctx, job, fmt.Sprintf("failed to load items: %v", err))
		return
	}
	if len(items) == 0 {
		o.fail(ctx, job, "no items to render")
		return
	}

	itemImages := o.fetchItemImages(ctx, job.ID(), items)

	prompt := BuildRenderPrompt(ctx, o.Text, firstName, job.Context(), items)

	parts := make([]Part, 0, 2+len(itemImages))
	parts = append(parts, Part{Text: prompt}, Part{ImageData: personImage})
	for _, img := range itemImages {
		if len(parts)-1 > maxReferenceImages {
			break
		}
		parts = append(parts, Part{ImageData: img})
	}

	result, err := o.Images.Generate(ctx, parts)
	if err != nil || result == nil || len(result.ImageData) == 0 {
		if err != nil {
			log.Printf("Generation job %s first image call failed: %v", job.ID(), err)
		}
		// One retry with a simplified text-only description and just the
		// reference photo; some prompts with many inline images come back
		// text-only.
		simplified := []Part{
			{Text: SimplifiedRenderPrompt(items)},
			{ImageData: personImage},
		}
		result, err = o.Images.Generate(ctx, simplified)
		if err != nil {
			o.fail(ctx, job, fmt.Sprintf("image generation failed: %v", err))
			return
		}
	}
	if result == nil || len(result.ImageData) == 0 {
		o.fail(ctx, job, "image generation returned no image")
		return
	}

	imageKey, err := o.Blobs.Store(ctx, result.ImageData, "image/jpeg")
	if err != nil {
		o.fail(ctx, job, fmt.Sprintf("failed to store render: %v", err))
		return
	}

	if err := job.SaveImage(ctx, imageKey, photoKey, o.Images.Provider()); err != nil {
		o.fail(ctx, job, fmt.Sprintf("failed to save render record: %v", err))
		return
	}

	if err := job.SetStatus(ctx, models.StatusCompleted, ""); err != nil {
		log.Printf("Generation job %s completed but status update failed: %v", job.ID(), err)
	}
}

// fetchItemImages pulls the primary catalog image of every item with bounded
// parallelism. A failed fetch drops that reference with a log line; the
// render proceeds with fewer references rather than aborting.
func (o *Orchestrator) fetchItemImages(ctx context.Context, jobID string, items []models.Item) [][]byte {
	concurrency := o.FetchConcurrency
	if concurrency == 0 {
		concurrency = 5
	}

	results := make([][]byte, len(items))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range items {
		key := items[i].PrimaryImageKey()
		if key == "" {
			log.Printf("Generation job %s: item %s has no image, skipping", jobID, items[i].ID.Hex())
			continue
		}
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			data, err := o.Blobs.Fetch(ctx, key)
			if err != nil {
				log.Printf("Generation job %s: failed to fetch item image %s: %v", jobID, key, err)
				return
			}
			results[i] = data
		}(i, key)
	}
	wg.Wait()

	images := make([][]byte, 0, len(items))
	for _, data := range results {
		if data != nil {
			images = append(images, data)
		}
	}
	return images
}

func (o *Orchestrator) fail(ctx context.Context, job Job, message string) {
	if err := job.SetStatus(ctx, models.StatusFailed, message); err != nil {
		log.Printf("Generation job %s failed (%s) and the status update also failed: %v", job.ID(), message, err)
	}
}
