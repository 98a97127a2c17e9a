package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"calibration-backend/internal/config"
	"calibration-backend/internal/queue"
	"calibration-backend/internal/records"
	"calibration-backend/internal/shared/metrics"
	"calibration-backend/internal/shared/storage/db"
	"calibration-backend/internal/shared/telemetry"
)

const (
	sqsRegion                 = "us-east-1"
	defaultVisibilitySeconds  = 300
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()

	queueURL := strings.TrimSpace(os.Getenv("CB_SQS_QUEUE_URL"))
	if queueURL == "" {
		log.Fatal("CB_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("CB_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("CB_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("CB_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	region := strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region == "" {
		region = sqsRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	opts := db.OptionsFromEnv(db.DefaultWorkerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer sqlDB.Close()
	repo := &records.PGRepo{DB: sqlDB}

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncDeferredWriteReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, sqsClient, queueURL, repo, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight writes", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight writes")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage replays one deferred record write. Undecodable or invalid
// messages are deleted as unrecoverable; failed writes stay on the queue for
// redelivery.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, repo records.Repo, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	if strings.TrimSpace(body) == "" {
		telemetry.Error("worker.deferred_write.empty_body", baseFields(msg, "", ""))
		if deleteMessage(ctx, client, queueURL, msg, "", "") {
			metrics.IncDeferredWriteDropped()
		}
		return
	}

	decoded, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		fields := baseFields(msg, "", "")
		fields["error"] = err.Error()
		telemetry.Error("worker.deferred_write.decode_failed", fields)
		if deleteMessage(ctx, client, queueURL, msg, "", "") {
			metrics.IncDeferredWriteDropped()
		}
		return
	}

	if !records.ValidRONumber(decoded.RONumber) {
		fields := baseFields(msg, decoded.RONumber, decoded.RequestID)
		telemetry.Error("worker.deferred_write.invalid_ro", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.RONumber, decoded.RequestID) {
			metrics.IncDeferredWriteDropped()
		}
		return
	}

	telemetry.Info("worker.deferred_write.received", baseFields(msg, decoded.RONumber, decoded.RequestID))

	if err := applyDeferredWrite(ctx, repo, decoded); err != nil {
		fields := baseFields(msg, decoded.RONumber, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.deferred_write.failed", fields)
		metrics.IncDeferredWriteFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.RONumber, decoded.RequestID) {
		telemetry.Info("worker.deferred_write.applied", baseFields(msg, decoded.RONumber, decoded.RequestID))
		metrics.IncDeferredWriteApplied()
	}
}

func applyDeferredWrite(ctx context.Context, repo records.Repo, msg queue.Message) error {
	if msg.Status != "" {
		if _, err := repo.Upsert(ctx, msg.RONumber, records.Partial{Status: &msg.Status}); err != nil {
			return err
		}
	}
	if msg.NoteAction != "" {
		note := records.NoteEvent{Actor: msg.NoteActor, Action: msg.NoteAction}
		if ts, err := time.Parse(time.RFC3339, msg.EnqueuedAt); err == nil {
			note.Timestamp = ts
		}
		if err := repo.AppendNote(ctx, msg.RONumber, note); err != nil {
			return err
		}
	}
	return nil
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, roNumber, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, roNumber, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.deferred_write.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, roNumber, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.deferred_write.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, roNumber, requestID string) map[string]any {
	fields := map[string]any{
		"ro_number":      roNumber,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
