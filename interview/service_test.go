package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gulddaggi/MindStage/api"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := api.New(srv.URL, 5*time.Second, api.NewTokenStore("tok", "rt"))
	return NewService(client)
}

func TestFetchQuestions(t *testing.T) {
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Interview/7/questions/presigned-urls", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"success":true,"data":[
			{"interviewQuestionId":11,"preSignedUrl":"https://s3/q11","difficult":"STRICT"},
			{"interviewQuestionId":12,"preSignedUrl":"https://s3/q12","difficult":"LAX"}
		]}`)
	}))

	qs, err := s.FetchQuestions(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, QuestionRef{QuestionID: 11, URL: "https://s3/q11", Difficulty: "STRICT"}, qs[0])
	assert.Equal(t, "LAX", qs[1].Difficulty)
}

func TestFetchQuestionsEnvelopeFailure(t *testing.T) {
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"message":"not found","code":"I404"}`)
	}))

	_, err := s.FetchQuestions(context.Background(), 7)
	assert.ErrorContains(t, err, "not found")
}

func TestRequestUploadTarget(t *testing.T) {
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/Interview/presigned-url", r.URL.Path)
		assert.Equal(t, "answer q1.wav", r.URL.Query().Get("fileName"))
		fmt.Fprint(w, `{"success":true,"data":{"presignedUrl":"https://s3/put","s3Key":"interviews/a.wav","expirationSeconds":900}}`)
	}))

	target, err := s.RequestUploadTarget(context.Background(), "answer q1.wav")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/put", target.PutURL)
	assert.Equal(t, "interviews/a.wav", target.ObjectKey)
	assert.Equal(t, int64(900), target.ExpirySeconds)
}

func TestRequestUploadTargetFailures(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		_, err := s.RequestUploadTarget(context.Background(), "a.wav")
		assert.ErrorIs(t, err, ErrPresign)
	})

	t.Run("missing key", func(t *testing.T) {
		s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"success":true,"data":{"presignedUrl":"https://s3/put"}}`)
		}))
		_, err := s.RequestUploadTarget(context.Background(), "a.wav")
		assert.ErrorIs(t, err, ErrPresign)
	})
}

func TestPutBytes(t *testing.T) {
	payload := []byte("RIFFxxxxWAVE-payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"), "presigned PUT must not carry a bearer")
		assert.Empty(t, r.Header.Get("Expect"))
		assert.Equal(t, int64(len(payload)), r.ContentLength)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, payload, body)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	s := NewService(api.New(srv.URL, time.Second, api.NewTokenStore("tok", "rt")))
	err := s.PutBytes(context.Background(), &UploadTarget{PutURL: srv.URL + "/obj"}, payload, "audio/wav")
	assert.NoError(t, err)
}

func TestPutBytesRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	s := NewService(api.New(srv.URL, time.Second, api.NewTokenStore("", "")))
	err := s.PutBytes(context.Background(), &UploadTarget{PutURL: srv.URL + "/obj"}, []byte("x"), "audio/wav")
	assert.ErrorContains(t, err, "403")
}

func TestRegisterAnswer(t *testing.T) {
	var got map[string]any
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Interview/reply", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"success":true}`)
	}))

	require.NoError(t, s.RegisterAnswer(context.Background(), 11, "interviews/a.wav"))
	assert.Equal(t, float64(11), got["questionId"])
	assert.Equal(t, "interviews/a.wav", got["s3Key"])
}

func TestRequestFollowup(t *testing.T) {
	t.Run("returns question", func(t *testing.T) {
		s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/Interview/related", r.URL.Path)
			fmt.Fprint(w, `{"success":true,"data":{"questionId":99,"preSignedUrl":"https://s3/f","difficult":""}}`)
		}))

		q, err := s.RequestFollowup(context.Background(), 11, "key")
		require.NoError(t, err)
		require.NotNil(t, q)
		assert.Equal(t, 99, q.QuestionID)
		assert.Empty(t, q.Difficulty)
	})

	t.Run("none available", func(t *testing.T) {
		s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"success":true,"data":{}}`)
		}))

		q, err := s.RequestFollowup(context.Background(), 11, "key")
		require.NoError(t, err)
		assert.Nil(t, q)
	})
}

func TestNotifyEnd(t *testing.T) {
	var got map[string]any
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Interview/end", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"success":true}`)
	}))

	require.NoError(t, s.NotifyEnd(context.Background(), 7, nil))
	assert.Nil(t, got["s3Key"])

	key := "interviews/full.wav"
	require.NoError(t, s.NotifyEnd(context.Background(), 7, &key))
	assert.Equal(t, key, got["s3Key"])
}

func TestDownloadAudio(t *testing.T) {
	body := make([]byte, 1024)
	copy(body, "RIFF")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	s := NewService(api.New(srv.URL, time.Second, api.NewTokenStore("tok", "rt")))
	b, err := s.DownloadAudio(context.Background(), srv.URL+"/q.wav")
	require.NoError(t, err)
	assert.Equal(t, body, b)
}

func TestDownloadAudioTooShort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	t.Cleanup(srv.Close)

	s := NewService(api.New(srv.URL, time.Second, api.NewTokenStore("", "")))
	_, err := s.DownloadAudio(context.Background(), srv.URL+"/q.wav")
	assert.ErrorContains(t, err, "too short")
}
