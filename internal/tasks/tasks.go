package tasks

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // review photos arrive as jpeg or png data URLs
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/draggle/rate-my-rez-waterloo/internal/config"
	"github.com/draggle/rate-my-rez-waterloo/internal/email"
	"github.com/draggle/rate-my-rez-waterloo/internal/services"
	"github.com/draggle/rate-my-rez-waterloo/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Payloads ---

// EmailTaskPayload carries a fully composed email.
type EmailTaskPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ImageTaskPayload identifies the review whose inline photo needs processing.
type ImageTaskPayload struct {
	ReviewID string `json:"review_id"`
}

// NewEmailDeliveryTask builds an email delivery task.
func NewEmailDeliveryTask(to, subject, body string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailTaskPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, payload), nil
}

// NewImageProcessTask builds an image processing task for a review.
func NewImageProcessTask(reviewID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageTaskPayload{ReviewID: reviewID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	return asynq.NewTask(TypeImageProcess, payload, asynq.Queue("images")), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	storageService storage.IS3Storage
	reviewService  services.IReviewService
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	reviewService services.IReviewService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		storageService: storageService,
		reviewService:  reviewService,
	}
}

// SetupServer configures and starts an Asynq server instance. The server runs
// in the background; the caller is responsible for Shutdown.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isBgWorker bool) *asynq.Server {
	if !isBgWorker {
		log.Println("Running in API mode, no task server started.")
		return nil
	}

	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
	log.Println("Registered background task handlers (email & images).")

	if err := srv.Start(mux); err != nil {
		log.Fatalf("Could not start Asynq server: %v", err)
	}

	return srv
}

// --- Task Handlers ---

// HandleEmailDeliveryTask processes email delivery tasks.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", payload.Subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(payload.Body)
	sb.WriteString("\r\n")

	err := p.emailSender.Send(ctx, []string{payload.To}, payload.Subject, []byte(sb.String()))
	if err != nil {
		log.Printf("Email sending failed (will retry): %v", err)
		return err
	}

	log.Printf("Email task processed successfully: To=%s, Subject=%s", payload.To, payload.Subject)
	return nil
}

// HandleImageProcessTask normalizes a review's inline photo: the stored data
// URL is decoded, downscaled to the configured width, re-encoded as JPEG and
// moved to S3. The review then points at the public URL instead of carrying
// megabytes of base64 in every snapshot.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	reviewID, err := primitive.ObjectIDFromHex(payload.ReviewID)
	if err != nil {
		log.Printf("Invalid ReviewID in image task payload: %s", payload.ReviewID)
		return fmt.Errorf("invalid review ID in payload: %w", asynq.SkipRetry)
	}

	review, err := p.reviewService.FindByID(ctx, reviewID)
	if err != nil {
		log.Printf("Review %s not found for image processing: %v", payload.ReviewID, err)
		return fmt.Errorf("review not found: %w", asynq.SkipRetry)
	}

	if !strings.HasPrefix(review.Image, "data:") {
		// Already processed (or no image); nothing to do.
		log.Printf("Review %s image is not a data URL, skipping", payload.ReviewID)
		return nil
	}

	imgData, err := decodeDataURL(review.Image)
	if err != nil {
		log.Printf("Error decoding data URL for review %s: %v", payload.ReviewID, err)
		return fmt.Errorf("bad image data URL: %w", asynq.SkipRetry)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Review %s image exceeds max size (%d > %d bytes). Skipping.", payload.ReviewID, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for review %s: %v", payload.ReviewID, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image for review %s, format: %s, size: %dx%d", payload.ReviewID, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxWidth := p.cfg.ImageMaxWidth
	if img.Bounds().Dx() > maxWidth {
		img = resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		log.Printf("Error encoding processed image for review %s: %v", payload.ReviewID, err)
		return fmt.Errorf("failed to encode processed image: %w", err)
	}

	url, err := p.storageService.UploadReviewImage(ctx, review.PropertyID, payload.ReviewID, buf.Bytes(), "image/jpeg")
	if err != nil {
		log.Printf("Error uploading processed image for review %s: %v", payload.ReviewID, err)
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	if err := p.reviewService.SetImage(ctx, reviewID, url); err != nil {
		log.Printf("Error pointing review %s at processed image: %v", payload.ReviewID, err)
		return fmt.Errorf("failed to update review with processed image: %w", err)
	}

	log.Printf("Image task processed successfully: ReviewID=%s, URL=%s", payload.ReviewID, url)
	return nil
}

// decodeDataURL extracts the payload of a base64 data URL such as
// "data:image/jpeg;base64,<payload>".
func decodeDataURL(dataURL string) ([]byte, error) {
	_, rest, found := strings.Cut(dataURL, ",")
	if !found {
		return nil, fmt.Errorf("missing comma separator in data URL")
	}
	if !strings.Contains(dataURL[:len(dataURL)-len(rest)-1], ";base64") {
		return nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}
