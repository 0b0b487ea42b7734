package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/DoctaneDMS/dms-service-sql/internal/blobstore"
	"github.com/DoctaneDMS/dms-service-sql/internal/config"
	"github.com/DoctaneDMS/dms-service-sql/internal/database"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/encryption"
	"github.com/DoctaneDMS/dms-service-sql/internal/metrics"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// ErrPassphraseRequired is returned when encrypted content is read before
// Unlock.
var ErrPassphraseRequired = errors.New("encrypted repository: passphrase required")

// Options tune how an App is opened.
type Options struct {
	// Mutating commands hold the repository lock until Close.
	Mutating bool
	// Verbose sends debug records to stderr as well as the log file.
	Verbose bool
}

// DMSApp is the application layer between the CLI and dms.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw path strings, and releases everything on Close.
type DMSApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	blobs     dms.BlobStore
	encrypted *blobstore.EncryptedStore
	service   *dms.Service
	metrics   *metrics.Metrics
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File
	lock      *flock.Flock
}

// NewDMSApp creates a fully wired DMSApp from the given config.
// operation identifies the CLI command being run (e.g. "put", "ls").
// The caller must call Close when done.
func NewDMSApp(ctx context.Context, cfg *config.Config, operation string, params []string, opts Options) (*DMSApp, error) {
	a := &DMSApp{cfg: cfg, metrics: metrics.New()}
	a.op = NewOperation(operation, params, time.Now())

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger, logFile, err := newLogger(cfg.LogDir, a.op.ID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a.logger, a.logFile = logger, logFile
	dmsLogger := &slogAdapter{l: logger}

	if opts.Mutating {
		if a.lock, err = acquireLock(ctx, cfg.BaseDir); err != nil {
			a.release()
			return nil, err
		}
	}

	a.db, err = database.NewDatabaseFromConfig(cfg.Database, database.WithLogger(dmsLogger), database.WithMetrics(a.metrics))
	if err != nil {
		a.release()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	blobs, err := blobstore.NewBlobStoreFromConfig(ctx, cfg.BlobStore)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil {
		a.encrypted = blobstore.NewEncryptedStore(blobs, enc)
		blobs = a.encrypted
	}
	a.blobs = blobs

	a.service = dms.NewService(a.db, a.blobs, dmsLogger, dms.RealClock{}, dms.RandomIDs{}, a.metrics)
	logger.Debug("operation started", "operation", operation, "params", params)
	return a, nil
}

// Encrypted reports whether reading content needs a passphrase.
func (a *DMSApp) Encrypted() bool { return a.encrypted != nil }

// Unlock decrypts the private key so content can be read.
func (a *DMSApp) Unlock(passphrase string) error {
	if a.encrypted == nil {
		return nil
	}
	dec, err := a.encrypted.Encryptor().Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}
	a.encrypted.Unlock(dec)
	return nil
}

// Service exposes the repository service for operations without a
// dedicated wrapper.
func (a *DMSApp) Service() *dms.Service { return a.service }

func parsePath(raw string) (repopath.Path, error) {
	p, err := repopath.Parse(raw)
	if err != nil {
		return repopath.Root, fmt.Errorf("parsing path %q: %w", raw, err)
	}
	return p, nil
}

func parsePaths(raw ...string) ([]repopath.Path, error) {
	out := make([]repopath.Path, len(raw))
	for i, r := range raw {
		p, err := parsePath(r)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func createOptions(parents bool) dms.Options {
	if parents {
		return dms.CreateMissingParent
	}
	return 0
}

// Mkdir creates a workspace.
func (a *DMSApp) Mkdir(ctx context.Context, rawPath string, parents bool, state string) (*dms.Folder, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return nil, err
	}
	if state == "" {
		state = string(dms.StateOpen)
	}
	return a.service.CreateWorkspaceByName(ctx, p, dms.State(state), nil, createOptions(parents))
}

// PutOptions tune Put.
type PutOptions struct {
	MediaType string
	Parents   bool
	// Update adds a version when the link exists instead of failing.
	Update   bool
	Metadata dms.Metadata
}

// Put stores the content of a local file at rawPath. An empty media type
// is guessed from the file extension.
func (a *DMSApp) Put(ctx context.Context, rawPath, file string, opts PutOptions) (*dms.DocumentLink, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	mediaType := opts.MediaType
	if mediaType == "" {
		mediaType = guessMediaType(file)
	}
	metadata := dms.Metadata{"DocumentTitle": filepath.Base(file)}.Merge(opts.Metadata)

	if opts.Update {
		return a.service.UpdateDocumentLink(ctx, p, mediaType, f, metadata, dms.CreateMissingItem|createOptions(opts.Parents))
	}
	return a.service.CreateDocumentLink(ctx, p, mediaType, f, metadata, createOptions(opts.Parents))
}

func guessMediaType(file string) string {
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Get writes the content linked at rawPath to w.
func (a *DMSApp) Get(ctx context.Context, rawPath string, w io.Writer) (*dms.DocumentLink, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return nil, err
	}
	link, err := a.service.GetData(ctx, p, w)
	if errors.Is(err, blobstore.ErrLocked) {
		return nil, ErrPassphraseRequired
	}
	return link, err
}

// ListOptions tune List.
type ListOptions struct {
	History bool
	Deleted bool
	// Where is a JSONPath expression the metadata must match.
	Where string
}

// List catalogues the objects matching rawPath.
func (a *DMSApp) List(ctx context.Context, rawPath string, opts ListOptions) ([]dms.Object, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return nil, err
	}
	f, err := dms.ParseMetadataFilter(opts.Where)
	if err != nil {
		return nil, err
	}
	var search dms.Options
	if opts.Deleted {
		search |= dms.FreeSearch
	}
	if opts.History {
		search |= dms.AllVersions
	}
	return a.service.CatalogueByName(ctx, p, f, search)
}

// Info returns the workspace or link at rawPath.
func (a *DMSApp) Info(ctx context.Context, rawPath string) (dms.Object, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.GetObjectByName(ctx, p)
}

// Copy copies a workspace or link.
func (a *DMSApp) Copy(ctx context.Context, rawSrc, rawDst string, parents bool) (dms.Object, error) {
	paths, err := parsePaths(rawSrc, rawDst)
	if err != nil {
		return nil, err
	}
	return a.service.CopyObject(ctx, paths[0], paths[1], createOptions(parents))
}

// Remove marks the object at rawPath deleted.
func (a *DMSApp) Remove(ctx context.Context, rawPath string) ([]dms.Object, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.DeleteObjectByName(ctx, p)
}

// Undelete restores a deleted object.
func (a *DMSApp) Undelete(ctx context.Context, rawPath string) ([]dms.Object, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.UndeleteObjectByName(ctx, p)
}

// Publish labels a snapshot of the object at rawPath.
func (a *DMSApp) Publish(ctx context.Context, rawPath, label string) (dms.Object, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.Publish(ctx, p, label)
}

// SetState changes the state of a workspace.
func (a *DMSApp) SetState(ctx context.Context, rawPath, state string) (*dms.Folder, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.UpdateWorkspaceByName(ctx, p, dms.State(state), nil, 0)
}

// History lists the versions of a document, oldest first. rawRef is a
// document id, optionally followed by @version.
func (a *DMSApp) History(ctx context.Context, rawRef string) ([]*dms.Document, error) {
	ref, err := a.service.ParseReference(rawRef)
	if err != nil {
		return nil, err
	}
	return a.service.CatalogueHistory(ctx, ref, dms.MetadataFilter{})
}

// Check runs the integrity sweep below rawPath.
func (a *DMSApp) Check(ctx context.Context, rawPath string, fix bool) (dms.IntegrityStatus, error) {
	p, err := parsePath(rawPath)
	if err != nil {
		return dms.IntegrityStatus{}, err
	}
	status, err := a.service.CheckIntegrity(ctx, p, fix)
	if errors.Is(err, blobstore.ErrLocked) {
		return status, ErrPassphraseRequired
	}
	return status, err
}

// SetupKeys generates the key pair of an age-encrypted repository.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return fmt.Errorf("encryption is not configured (type %q)", cfg.Encryption.Type)
	}
	return enc.Setup(passphrase)
}

// Close finalizes the operation with its outcome and releases every
// resource. The metrics textfile, when configured, is written last.
func (a *DMSApp) Close(opErr error) error {
	a.op.Finish(opErr)
	if a.logger != nil {
		a.logger.Debug("operation finished", "operation", a.op.Name, "status", a.op.Status, "elapsed", a.op.Elapsed(time.Now()))
	}

	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.db = nil
	a.release()
	return firstErr
}

// release drops the lock and the log file.
func (a *DMSApp) release() {
	if a.db != nil {
		a.db.Close()
	}
	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil && a.logger != nil {
			a.logger.Warn("releasing lock", "error", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
