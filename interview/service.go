// Package interview talks to the interview backend: question fetch,
// presigned uploads, answer registration, follow-ups, and the session
// end notification.
package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/gulddaggi/MindStage/api"
	"github.com/gulddaggi/MindStage/wav"
)

// ErrPresign marks a failed or malformed presigned-URL grant. The
// caller treats the answer as skipped; there is no second presign
// attempt for the same recording.
var ErrPresign = errors.New("interview: presign failed")

// QuestionRef is one question to ask: where its audio lives and which
// interviewer voice asks it.
type QuestionRef struct {
	QuestionID int
	URL        string
	Difficulty string
}

// UploadTarget is a presigned write grant for one answer file.
type UploadTarget struct {
	PutURL        string
	ObjectKey     string
	ExpirySeconds int64
}

// envelope is the backend's uniform response wrapper.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Data    T      `json:"data"`
}

type questionDTO struct {
	InterviewQuestionID int    `json:"interviewQuestionId"`
	PreSignedURL        string `json:"preSignedUrl"`
	Difficult           string `json:"difficult"`
}

type uploadTargetDTO struct {
	PresignedURL      string `json:"presignedUrl"`
	S3Key             string `json:"s3Key"`
	ExpirationSeconds int64  `json:"expirationSeconds"`
}

type Service struct {
	client *api.Client
}

func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// FetchQuestions returns the full question list for the interview,
// each with a short-lived download URL.
func (s *Service) FetchQuestions(ctx context.Context, interviewID int) ([]QuestionRef, error) {
	path := fmt.Sprintf("/api/Interview/%d/questions/presigned-urls", interviewID)
	resp, err := s.client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("fetching questions: status %d", resp.Status)
	}

	var env envelope[[]questionDTO]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("fetching questions: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("fetching questions: %s (%s)", env.Message, env.Code)
	}

	questions := make([]QuestionRef, 0, len(env.Data))
	for _, q := range env.Data {
		questions = append(questions, QuestionRef{
			QuestionID: q.InterviewQuestionID,
			URL:        q.PreSignedURL,
			Difficulty: q.Difficult,
		})
	}
	return questions, nil
}

// RequestUploadTarget asks for a presigned write grant for fileName.
func (s *Service) RequestUploadTarget(ctx context.Context, fileName string) (*UploadTarget, error) {
	path := "/api/Interview/presigned-url?fileName=" + url.QueryEscape(fileName)
	resp, err := s.client.Post(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPresign, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d", ErrPresign, resp.Status)
	}

	var env envelope[uploadTargetDTO]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPresign, err)
	}
	if !env.Success || env.Data.PresignedURL == "" || env.Data.S3Key == "" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrPresign, env.Message, env.Code)
	}

	return &UploadTarget{
		PutURL:        env.Data.PresignedURL,
		ObjectKey:     env.Data.S3Key,
		ExpirySeconds: env.Data.ExpirationSeconds,
	}, nil
}

// RegisterAnswer binds an uploaded object to its question.
func (s *Service) RegisterAnswer(ctx context.Context, questionID int, objectKey string) error {
	resp, err := s.client.Post(ctx, "/api/Interview/reply", map[string]any{
		"questionId": questionID,
		"s3Key":      objectKey,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("registering answer: status %d", resp.Status)
	}
	return nil
}

// RequestFollowup submits the answer key and returns the generated
// follow-up question, or nil when the backend has none to ask.
func (s *Service) RequestFollowup(ctx context.Context, questionID int, objectKey string) (*QuestionRef, error) {
	resp, err := s.client.Post(ctx, "/api/Interview/related", map[string]any{
		"questionId": questionID,
		"s3Key":      objectKey,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("requesting follow-up: status %d", resp.Status)
	}

	var env envelope[struct {
		QuestionID   int    `json:"questionId"`
		PreSignedURL string `json:"preSignedUrl"`
		Difficult    string `json:"difficult"`
	}]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("requesting follow-up: %w", err)
	}
	if !env.Success || env.Data.PreSignedURL == "" {
		return nil, nil
	}

	return &QuestionRef{
		QuestionID: env.Data.QuestionID,
		URL:        env.Data.PreSignedURL,
		Difficulty: env.Data.Difficult,
	}, nil
}

// NotifyEnd reports the session as finished. objectKey is the session
// audio to attach, when one exists.
func (s *Service) NotifyEnd(ctx context.Context, interviewID int, objectKey *string) error {
	resp, err := s.client.Post(ctx, "/api/Interview/end", map[string]any{
		"interviewId": interviewID,
		"s3Key":       objectKey,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("end notification: status %d", resp.Status)
	}
	return nil
}

// minAudioBytes rejects downloads too small to hold even a header.
const minAudioBytes = wav.HeaderSize
