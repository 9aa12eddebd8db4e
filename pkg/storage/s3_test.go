package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), Options{})
	assert.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	st, err := NewS3Storage(context.Background(), Options{
		Bucket:          "snapshots",
		Endpoint:        "http://localhost:9000/",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	s := st.(*s3Storage)
	assert.Equal(t, "http://localhost:9000/snapshots/leaderboard/latest.json", s.publicURL("/leaderboard/latest.json"))

	st, err = NewS3Storage(context.Background(), Options{
		Bucket:          "snapshots",
		Region:          "eu-west-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		PublicBaseURL:   "https://cdn.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.json", st.(*s3Storage).publicURL("a.json"))
}
