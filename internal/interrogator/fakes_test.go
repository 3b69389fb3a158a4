package interrogator

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/curve25519"

	"github.com/ghga-de/datahub-file-service/internal/constants"
	"github.com/ghga-de/datahub-file-service/internal/crypt4gh"
	"github.com/ghga-de/datahub-file-service/internal/models"
)

// fakeCentral records submitted reports and serves canned upload lists.
type fakeCentral struct {
	uploads   []models.FileUpload
	fetchErr  error
	removable []string
	reports   []*models.InterrogationReport

	// secrets captures the raw key material at submission time, before the
	// interrogator wipes it.
	secrets [][]byte
}

func (c *fakeCentral) FetchNewUploads(ctx context.Context) ([]models.FileUpload, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.uploads, nil
}

func (c *fakeCentral) GetRemovableFiles(ctx context.Context, fileIDs []string) ([]string, error) {
	return c.removable, nil
}

func (c *fakeCentral) SubmitInterrogationReport(ctx context.Context, report *models.InterrogationReport) error {
	c.reports = append(c.reports, report)
	if report.Secret != nil {
		c.secrets = append(c.secrets, append([]byte{}, report.Secret.Bytes()...))
	} else {
		c.secrets = append(c.secrets, nil)
	}
	return nil
}

// fakeStore keeps the inbox and interrogation buckets in memory.
type fakeStore struct {
	inbox         map[string][]byte
	interrogation map[string][]byte

	initErr     error
	partPutErr  error
	etagOverride string

	mpus    []*fakeMPU
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		inbox:         map[string][]byte{},
		interrogation: map[string][]byte{},
	}
}

func (s *fakeStore) FileExistsInInbox(ctx context.Context, objectID string) (bool, error) {
	_, ok := s.inbox[objectID]
	return ok, nil
}

func (s *fakeStore) FetchContentRange(ctx context.Context, objectID string, start, stop int64) ([]byte, error) {
	object, ok := s.inbox[objectID]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectID)
	}
	if start < 0 || stop > int64(len(object)) || start >= stop {
		return nil, fmt.Errorf("invalid range [%d, %d) for object of %d bytes", start, stop, len(object))
	}
	return append([]byte{}, object[start:stop]...), nil
}

func (s *fakeStore) ListInterrogationObjects(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.interrogation))
	for key := range s.interrogation {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fakeStore) InitUpload(ctx context.Context, objectID string) (MultipartUpload, error) {
	if s.initErr != nil {
		return nil, s.initErr
	}
	mpu := &fakeMPU{store: s, objectID: objectID, uploadID: fmt.Sprintf("upload-%d", len(s.mpus))}
	s.mpus = append(s.mpus, mpu)
	return mpu, nil
}

func (s *fakeStore) RemoveObject(ctx context.Context, objectID string) error {
	s.removed = append(s.removed, objectID)
	delete(s.interrogation, objectID)
	return nil
}

// fakeMPU mimics the store's multipart semantics: parts accumulate in
// order, completion assembles the object and returns the multipart ETag.
type fakeMPU struct {
	store     *fakeStore
	objectID  string
	uploadID  string
	parts     [][]byte
	completed bool
	aborted   bool
}

func (u *fakeMPU) UploadID() string { return u.uploadID }

func (u *fakeMPU) UploadPart(ctx context.Context, partNo int, partMD5 string, part []byte) error {
	if u.store.partPutErr != nil {
		return u.store.partPutErr
	}
	if partNo != len(u.parts) {
		return fmt.Errorf("part %d uploaded out of order, expected %d", partNo, len(u.parts))
	}
	sum := md5.Sum(part)
	if partMD5 != base64.StdEncoding.EncodeToString(sum[:]) {
		return fmt.Errorf("part %d: Content-MD5 does not match the part bytes", partNo)
	}
	u.parts = append(u.parts, append([]byte{}, part...))
	return nil
}

func (u *fakeMPU) Complete(ctx context.Context) (string, error) {
	u.completed = true
	var object []byte
	var md5Concat []byte
	for _, part := range u.parts {
		object = append(object, part...)
		sum := md5.Sum(part)
		md5Concat = append(md5Concat, sum[:]...)
	}
	u.store.interrogation[u.objectID] = object
	if u.store.etagOverride != "" {
		return u.store.etagOverride, nil
	}
	concatSum := md5.Sum(md5Concat)
	return fmt.Sprintf("%s-%d", hex.EncodeToString(concatSum[:]), len(u.parts)), nil
}

func (u *fakeMPU) Abort(ctx context.Context) error {
	u.aborted = true
	return nil
}

func (u *fakeMPU) AbortIfOpen(ctx context.Context) {
	if !u.completed && !u.aborted {
		u.aborted = true
	}
}

// testFile bundles a generated inbox object with its upload record.
type testFile struct {
	upload    models.FileUpload
	plaintext []byte
	readerKey []byte
}

// makeTestFile builds a Crypt4GH inbox object for the given plaintext and
// registers it with the store.
func makeTestFile(t *testing.T, store *fakeStore, plaintext []byte) testFile {
	t.Helper()

	readerSecret := randomKey(t)
	readerPublic, err := curve25519.X25519(readerSecret, curve25519.Basepoint)
	if err != nil {
		t.Fatalf("failed to derive reader public key: %v", err)
	}
	writerSecret := randomKey(t)
	sessionKey := randomKey(t)

	envelope, err := crypt4gh.EncodeEnvelope(sessionKey, writerSecret, readerPublic)
	if err != nil {
		t.Fatalf("failed to encode envelope: %v", err)
	}

	object := append([]byte{}, envelope...)
	for start := 0; start < len(plaintext); start += constants.SegmentSize {
		stop := min(start+constants.SegmentSize, len(plaintext))
		segment, err := crypt4gh.EncryptSegment(plaintext[start:stop], sessionKey)
		if err != nil {
			t.Fatalf("failed to encrypt segment: %v", err)
		}
		object = append(object, segment...)
	}

	upload := models.FileUpload{
		ID:              newUUID(t),
		StorageAlias:    "inbox",
		DecryptedSHA256: sha256Hex(plaintext),
		DecryptedSize:   int64(len(plaintext)),
		EncryptedSize:   int64(len(object)),
		PartSize:        16 * constants.SegmentSize,
	}
	store.inbox[upload.ID.String()] = object

	return testFile{upload: upload, plaintext: plaintext, readerKey: readerSecret}
}

// fakeUpload wraps a test file's upload record in the list shape the batch
// driver consumes.
func fakeUpload(f testFile) []models.FileUpload {
	return []models.FileUpload{f.upload}
}

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, constants.EncryptionSecretLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func randomContent(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("failed to generate content: %v", err)
	}
	return data
}

// decryptObject decrypts a segment-aligned interrogation object with the
// given key and returns the concatenated plaintext.
func decryptObject(t *testing.T, object, key []byte) []byte {
	t.Helper()
	var plaintext []byte
	for start := 0; start < len(object); {
		stop := min(start+constants.CipherSegmentSize, len(object))
		segment, err := crypt4gh.DecryptSegment(object[start:stop], key)
		if err != nil {
			t.Fatalf("failed to decrypt staged segment at %d: %v", start, err)
		}
		plaintext = append(plaintext, segment...)
		start = stop
	}
	return plaintext
}

func assertEqualBytes(t *testing.T, got, want []byte, what string) {
	t.Helper()
	if !bytes.Equal(got, want) {
		t.Errorf("%s does not match", what)
	}
}
