package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Operator wraps the S3 client for the gallery bucket. Objects are keyed by
// filename and served from a public base URL, so the public URL of an
// upload is always base + key.
type Operator struct {
	Client *s3.Client
	Bucket string
	// PublicEndpoint is the public base URL of the bucket.
	PublicEndpoint *url.URL
}

func NewOperator(client *s3.Client, bucket, publicBaseURL string) (*Operator, error) {
	const op = "NewOperator"
	publicEndpoint, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to parse public base URL, err=%w", op, err)
	}
	return &Operator{Client: client, Bucket: bucket, PublicEndpoint: publicEndpoint}, nil
}

// Upload puts the object under key and returns its public URL. Re-uploading
// an existing key overwrites the object.
func (o *Operator) Upload(ctx context.Context, key, contentType string, content []byte) (string, error) {
	const op = "Operator.Upload"
	_, err := o.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to upload object, err=%w", op, err)
	}
	return o.PublicURL(key), nil
}

// PublicURL derives the browser-facing URL of a stored object.
func (o *Operator) PublicURL(key string) string {
	uri := *o.PublicEndpoint
	uri.Path = key
	return uri.String()
}
