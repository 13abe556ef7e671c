package s3

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const fakeBucket = "rentcore-documents"

// NewFake returns a Store whose HTTP client talks to an in-process bucket
// implementing the object calls Store makes. Nothing leaves the process.
func NewFake() *Store {
	bucket := &fakeBucketServer{name: fakeBucket, objects: map[string]fakeObject{}}
	awsCfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDFAKE", "fake-secret", ""),
	}
	return newStore(awsCfg, Config{Bucket: fakeBucket, Endpoint: "https://s3.fake.local", PathStyle: true},
		func(o *s3.Options) { o.HTTPClient = &http.Client{Transport: handlerTransport{bucket}} })
}

// handlerTransport serves requests from an http.Handler without a socket.
type handlerTransport struct{ h http.Handler }

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.h.ServeHTTP(rec, req)
	res := rec.Result()
	res.Request = req
	return res, nil
}

type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	etag        string
	modified    time.Time
}

type fakeBucketServer struct {
	name    string
	mu      sync.Mutex
	objects map[string]fakeObject
}

func (b *fakeBucketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, ok := strings.CutPrefix(r.URL.Path, "/"+b.name)
	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	key = strings.TrimPrefix(key, "/")

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case key == "" && r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		b.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodPut:
		b.put(w, r, key)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		obj, found := b.objects[key]
		if !found {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		h := w.Header()
		h.Set("Content-Length", strconv.Itoa(len(obj.data)))
		h.Set("Content-Type", obj.contentType)
		h.Set("ETag", `"`+obj.etag+`"`)
		h.Set("Last-Modified", obj.modified.Format(http.TimeFormat))
		for k, v := range obj.metadata {
			h.Set("X-Amz-Meta-"+k, v)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.data)
		}
	case r.Method == http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeS3Error(w, http.StatusNotImplemented, "NotImplemented")
	}
}

func (b *fakeBucketServer) put(w http.ResponseWriter, r *http.Request, key string) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeS3Error(w, http.StatusBadRequest, "IncompleteBody")
		return
	}
	if strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") || r.Header.Get("X-Amz-Decoded-Content-Length") != "" {
		if data, err = decodeAWSChunked(data); err != nil {
			writeS3Error(w, http.StatusBadRequest, "InvalidChunkedEncoding")
			return
		}
	}
	meta := map[string]string{}
	for name, values := range r.Header {
		if k, ok := strings.CutPrefix(strings.ToLower(name), "x-amz-meta-"); ok && len(values) > 0 {
			meta[k] = values[0]
		}
	}
	sum := md5.Sum(data)
	obj := fakeObject{
		data:        data,
		contentType: r.Header.Get("Content-Type"),
		metadata:    meta,
		etag:        hex.EncodeToString(sum[:]),
		modified:    time.Now().UTC().Truncate(time.Second),
	}
	b.objects[key] = obj
	w.Header().Set("ETag", `"`+obj.etag+`"`)
	w.WriteHeader(http.StatusOK)
}

type listBucketResult struct {
	XMLName     xml.Name      `xml:"ListBucketResult"`
	Name        string        `xml:"Name"`
	Prefix      string        `xml:"Prefix"`
	KeyCount    int           `xml:"KeyCount"`
	IsTruncated bool          `xml:"IsTruncated"`
	Contents    []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

func (b *fakeBucketServer) list(w http.ResponseWriter, prefix string) {
	res := listBucketResult{Name: b.name, Prefix: prefix}
	for key, obj := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		res.Contents = append(res.Contents, listContent{
			Key:          key,
			Size:         int64(len(obj.data)),
			ETag:         `"` + obj.etag + `"`,
			LastModified: obj.modified.Format(time.RFC3339),
		})
	}
	slices.SortFunc(res.Contents, func(x, y listContent) int { return strings.Compare(x.Key, y.Key) })
	res.KeyCount = len(res.Contents)
	writeXML(w, http.StatusOK, res)
}

type s3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	writeXML(w, status, s3Error{Code: code, Message: http.StatusText(status)})
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(v)
}

// decodeAWSChunked strips the aws-chunked framing the SDK uses for streamed
// uploads: "<hex size>[;ext]\r\n<data>\r\n" repeated, ending with a zero
// sized chunk and optional trailers.
func decodeAWSChunked(raw []byte) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(raw))
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("chunk header: %w", err)
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		size, err := strconv.ParseInt(strings.TrimSpace(sizeHex), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", sizeHex, err)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, fmt.Errorf("chunk body: %w", err)
		}
		if _, err := r.Discard(2); err != nil {
			return nil, fmt.Errorf("chunk terminator: %w", err)
		}
	}
}
