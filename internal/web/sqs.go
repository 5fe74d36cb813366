package web

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSJobQueue carries SaveJobs from the saveMetadata handler to cmd/worker.
type SQSJobQueue struct {
	client   sqsAPI
	queueURL string
}

var _ JobQueue = (*SQSJobQueue)(nil)

// ReceivedJob is a delivered message. Job is nil when the body could not be decoded.
type ReceivedJob struct {
	Job     *SaveJob
	Receipt string
	Err     error
}

// NewSQSJobQueue uses the default AWS credential chain; the queue lives in AWS
// even when objects are stored in B2.
func NewSQSJobQueue(ctx context.Context, queueURL string) (*SQSJobQueue, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &SQSJobQueue{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

func (q *SQSJobQueue) Enqueue(ctx context.Context, job SaveJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}
	return nil
}

// Receive long-polls for up to ten jobs.
func (q *SQSJobQueue) Receive(ctx context.Context) ([]ReceivedJob, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return nil, fmt.Errorf("receive message error: %w", err)
	}

	jobs := make([]ReceivedJob, 0, len(out.Messages))
	for _, m := range out.Messages {
		rj := ReceivedJob{Receipt: aws.ToString(m.ReceiptHandle)}
		var job SaveJob
		if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &job); err != nil {
			rj.Err = fmt.Errorf("invalid message body: %w", err)
		} else if job.ID == "" || job.OwnerID == "" || job.VideoKey == "" {
			rj.Err = fmt.Errorf("incomplete job %q", job.ID)
		} else {
			rj.Job = &job
		}
		jobs = append(jobs, rj)
	}
	return jobs, nil
}

func (q *SQSJobQueue) Ack(ctx context.Context, receipt string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("failed to delete SQS message: %w", err)
	}
	return nil
}
