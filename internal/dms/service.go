package dms

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/metrics"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// maxNameAttempts bounds the retries of a generated name that collided with
// a sibling.
const maxNameAttempts = 5

// Service is the orchestration layer over the database and the blob store.
// Every operation runs as one unit of work: a transaction that is committed
// on success, with any blob written along the way removed again on failure.
type Service struct {
	database Database
	blobs    BlobStore
	logger   Logger
	clock    Clock
	ids      IDGenerator
	metrics  *metrics.Metrics
}

// NewService creates a Service with the provided dependencies. m may be nil.
func NewService(database Database, blobs BlobStore, logger Logger, clock Clock, ids IDGenerator, m *metrics.Metrics) *Service {
	return &Service{
		database: database,
		blobs:    blobs,
		logger:   logger,
		clock:    clock,
		ids:      ids,
		metrics:  m,
	}
}

// work is the state of one unit of work.
type work struct {
	Tx
	ctx     context.Context
	s       *Service
	written []id.ID
}

// putBlob stores r under key and returns its length and SHA-256 digest.
func (w *work) putBlob(key id.ID, r io.Reader) (int64, []byte, error) {
	h := sha256.New()
	cr := &countingReader{r: io.TeeReader(r, h)}
	if err := w.s.blobs.Put(w.ctx, key, cr); err != nil {
		return 0, nil, fmt.Errorf("storing blob %s: %w", key, err)
	}
	w.written = append(w.written, key)
	w.s.metrics.AddBlobBytes(cr.n)
	return cr.n, h.Sum(nil), nil
}

func (w *work) linkBlob(from, to id.ID) error {
	if err := w.s.blobs.Link(w.ctx, from, to); err != nil {
		return fmt.Errorf("linking blob %s to %s: %w", from, to, err)
	}
	w.written = append(w.written, to)
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// run executes fn in a transaction named op.
func run[T any](ctx context.Context, s *Service, op string, fn func(*work) (T, error)) (result T, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(op, start, err) }()

	tx, err := s.database.Begin(ctx)
	if err != nil {
		return result, err
	}
	w := &work{Tx: tx, ctx: ctx, s: s}
	defer func() {
		if err == nil {
			return
		}
		if rerr := tx.Rollback(); rerr != nil {
			s.logger.Warn("rollback failed", "operation", op, "error", rerr)
		}
		for _, key := range w.written {
			if rerr := s.blobs.Remove(ctx, key); rerr != nil && !errors.Is(rerr, ErrBlobNotFound) {
				s.logger.Warn("removing orphaned blob", "key", key, "error", rerr)
			}
		}
	}()

	if result, err = fn(w); err != nil {
		var zero T
		return zero, err
	}
	if err = tx.Commit(); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

var noWildcard = regexp.MustCompile(`^[^*]+$`)

func invalid(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: fmt.Errorf("%s: %w", field, err)}
}

func validateMediaType(mediaType string) error {
	return invalid("media type", validation.Validate(mediaType, validation.Required))
}

func validateState(state State) error {
	return invalid("state", validation.Validate(state, validation.Required, validation.In(States...)))
}

func validateLabel(label string) error {
	return invalid("label", validation.Validate(label, validation.Required, validation.Match(noWildcard)))
}

// openFolder resolves the workspace at path, creating it when create is
// set, and requires it to be Open.
func (w *work) openFolder(path repopath.Path, create bool) (*Folder, error) {
	folder, err := w.GetOrCreateFolder(w.ctx, path, create)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, &WorkspaceError{Path: path}
	}
	if folder.State != StateOpen {
		return nil, &WorkspaceStateError{Path: path, State: folder.State}
	}
	return folder, nil
}

// requireOpen checks the state of the workspace holding an object at path.
func (w *work) requireOpen(folderID id.ID, path repopath.Path) error {
	folder, err := w.GetFolder(w.ctx, repopath.Root.AddID(folderID))
	if err != nil {
		return err
	}
	if folder == nil {
		return &WorkspaceError{Path: path.Parent()}
	}
	if folder.State != StateOpen {
		return &WorkspaceStateError{Path: path.Parent(), State: folder.State}
	}
	return nil
}

// objectName returns the name a new object at path gets. The last element
// must be a plain name without a version.
func objectName(path repopath.Path) (string, error) {
	if path.IsEmpty() {
		return "", &ObjectNameError{Path: path}
	}
	part := path.Part()
	if part.IsID() || part.IsWildcard() || !part.Version().IsNone() || part.Name() == "" {
		return "", &ObjectNameError{Path: path}
	}
	return part.Name(), nil
}

// nameTemplate picks the base of a generated name from metadata.
func nameTemplate(metadata Metadata, fallback string) string {
	for _, key := range []string{"DocumentTitle", "name"} {
		if v, ok := metadata.String(key); ok && v != "" {
			return v
		}
	}
	return fallback
}

// createNamed calls create with a name derived from template that is unused
// in folder, retrying when a sibling takes the name first.
func createNamed[T any](w *work, folder *Folder, template string, create func(name string) (T, error)) (T, error) {
	var zero T
	for range maxNameAttempts {
		name, err := w.GenerateUniqueName(w.ctx, folder.ID, template)
		if err != nil {
			return zero, err
		}
		v, err := create(name)
		if errors.Is(err, ErrNameConflict) {
			w.s.logger.Debug("generated name taken", "folder", folder.ID, "name", name)
			template = name
			continue
		}
		return v, err
	}
	return zero, fmt.Errorf("naming object in %s: %w", folder.ID, ErrNameConflict)
}

// newDocument stores r as the first version of a new document.
func (w *work) newDocument(mediaType string, r io.Reader, metadata Metadata) (*Document, error) {
	doc := &Document{
		Reference: Reference{ID: w.s.ids.New(), Version: w.s.blobs.GenerateKey()},
		MediaType: mediaType,
		Metadata:  Metadata{}.Merge(metadata),
	}
	var err error
	if doc.Length, doc.Digest, err = w.putBlob(doc.Version, r); err != nil {
		return nil, err
	}
	if err := w.CreateDocument(w.ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// newVersion records a version following prev. A nil r keeps the content of
// prev and an empty mediaType keeps its media type.
func (w *work) newVersion(prev *Document, mediaType string, r io.Reader, metadata Metadata) (*Document, error) {
	if mediaType == "" {
		mediaType = prev.MediaType
	}
	doc := &Document{
		Reference: Reference{ID: prev.ID, Version: w.s.blobs.GenerateKey()},
		MediaType: mediaType,
		Length:    prev.Length,
		Digest:    prev.Digest,
		Metadata:  prev.Metadata.Merge(metadata),
	}
	if r == nil {
		if err := w.linkBlob(prev.Version, doc.Version); err != nil {
			return nil, err
		}
	} else {
		var err error
		if doc.Length, doc.Digest, err = w.putBlob(doc.Version, r); err != nil {
			return nil, err
		}
	}
	if err := w.CreateVersion(w.ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (w *work) getDocument(ref Reference) (*Document, error) {
	doc, err := w.GetDocument(w.ctx, ref)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &ReferenceError{Text: ref.String()}
	}
	return doc, nil
}

func (w *work) getLink(path repopath.Path) (*DocumentLink, error) {
	link, err := w.GetDocumentLink(w.ctx, path)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, &ObjectNameError{Path: path}
	}
	return link, nil
}

// CreateDocument stores a document that is not linked into any workspace.
func (s *Service) CreateDocument(ctx context.Context, mediaType string, r io.Reader, metadata Metadata) (Reference, error) {
	if err := validateMediaType(mediaType); err != nil {
		return Reference{}, err
	}
	return run(ctx, s, "create_document", func(w *work) (Reference, error) {
		doc, err := w.newDocument(mediaType, r, metadata)
		if err != nil {
			return Reference{}, err
		}
		s.logger.Info("document created", "ref", doc.Reference)
		return doc.Reference, nil
	})
}

// UpdateDocument adds a version to a document. A nil r keeps the current
// content; metadata is merged into the current metadata.
func (s *Service) UpdateDocument(ctx context.Context, docID id.ID, mediaType string, r io.Reader, metadata Metadata) (Reference, error) {
	return run(ctx, s, "update_document", func(w *work) (Reference, error) {
		prev, err := w.GetDocument(ctx, Reference{ID: docID})
		if err != nil {
			return Reference{}, err
		}
		if prev == nil {
			return Reference{}, &DocumentIDError{ID: docID.String()}
		}
		doc, err := w.newVersion(prev, mediaType, r, metadata)
		if err != nil {
			return Reference{}, err
		}
		s.logger.Info("document updated", "ref", doc.Reference)
		return doc.Reference, nil
	})
}

// GetDocument returns a document version, or the latest version when
// ref.Version is the root id.
func (s *Service) GetDocument(ctx context.Context, ref Reference) (*Document, error) {
	return run(ctx, s, "get_document", func(w *work) (*Document, error) {
		return w.getDocument(ref)
	})
}

func (s *Service) GetDocumentLink(ctx context.Context, path repopath.Path) (*DocumentLink, error) {
	return run(ctx, s, "get_document_link", func(w *work) (*DocumentLink, error) {
		return w.getLink(path)
	})
}

// CreateDocumentLink stores a new document and links it at path.
func (s *Service) CreateDocumentLink(ctx context.Context, path repopath.Path, mediaType string, r io.Reader, metadata Metadata, opts Options) (*DocumentLink, error) {
	if err := validateMediaType(mediaType); err != nil {
		return nil, err
	}
	return run(ctx, s, "create_document_link", func(w *work) (*DocumentLink, error) {
		return w.createLink(path, mediaType, r, metadata, opts)
	})
}

func (w *work) createLink(path repopath.Path, mediaType string, r io.Reader, metadata Metadata, opts Options) (*DocumentLink, error) {
	name, err := objectName(path)
	if err != nil {
		return nil, err
	}
	folder, err := w.openFolder(path.Parent(), opts.Has(CreateMissingParent))
	if err != nil {
		return nil, err
	}
	doc, err := w.newDocument(mediaType, r, metadata)
	if err != nil {
		return nil, err
	}
	link, err := w.CreateDocumentLink(w.ctx, folder, name, doc.Reference)
	if err != nil {
		return nil, err
	}
	w.s.logger.Info("link created", "path", link.Path, "ref", link.Reference)
	return link, nil
}

// CreateDocumentLinkAndName stores a new document and links it in the
// workspace at folderPath under a generated name.
func (s *Service) CreateDocumentLinkAndName(ctx context.Context, folderPath repopath.Path, mediaType string, r io.Reader, metadata Metadata, opts Options) (*DocumentLink, error) {
	if err := validateMediaType(mediaType); err != nil {
		return nil, err
	}
	return run(ctx, s, "create_document_link", func(w *work) (*DocumentLink, error) {
		folder, err := w.openFolder(folderPath, opts.Has(CreateMissingParent))
		if err != nil {
			return nil, err
		}
		doc, err := w.newDocument(mediaType, r, metadata)
		if err != nil {
			return nil, err
		}
		link, err := createNamed(w, folder, nameTemplate(metadata, "Document"), func(name string) (*DocumentLink, error) {
			return w.CreateDocumentLink(ctx, folder, name, doc.Reference)
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info("link created", "path", link.Path, "ref", link.Reference)
		return link, nil
	})
}

// existingLink returns the current link to docID directly in folder, if
// any.
func (w *work) existingLink(folder *Folder, docID id.ID) (*DocumentLink, error) {
	return w.GetDocumentLink(w.ctx, repopath.Root.AddID(folder.ID).AddID(docID))
}

// CreateDocumentLinkToReference links an existing document at path.
func (s *Service) CreateDocumentLinkToReference(ctx context.Context, path repopath.Path, ref Reference, opts Options) (*DocumentLink, error) {
	return run(ctx, s, "create_document_link", func(w *work) (*DocumentLink, error) {
		return w.createLinkToReference(path, ref, opts)
	})
}

func (w *work) createLinkToReference(path repopath.Path, ref Reference, opts Options) (*DocumentLink, error) {
	name, err := objectName(path)
	if err != nil {
		return nil, err
	}
	folder, err := w.openFolder(path.Parent(), opts.Has(CreateMissingParent))
	if err != nil {
		return nil, err
	}
	doc, err := w.getDocument(ref)
	if err != nil {
		return nil, err
	}
	if opts.Has(ReturnExistingLinkToSameDocument) {
		existing, err := w.existingLink(folder, doc.ID)
		if err != nil || existing != nil {
			return existing, err
		}
	}
	return w.CreateDocumentLink(w.ctx, folder, name, doc.Reference)
}

// CreateDocumentLinkAndNameToReference links an existing document in the
// workspace at folderPath under a name generated from its metadata.
func (s *Service) CreateDocumentLinkAndNameToReference(ctx context.Context, folderPath repopath.Path, ref Reference, opts Options) (*DocumentLink, error) {
	return run(ctx, s, "create_document_link", func(w *work) (*DocumentLink, error) {
		folder, err := w.openFolder(folderPath, opts.Has(CreateMissingParent))
		if err != nil {
			return nil, err
		}
		doc, err := w.getDocument(ref)
		if err != nil {
			return nil, err
		}
		if opts.Has(ReturnExistingLinkToSameDocument) {
			existing, err := w.existingLink(folder, doc.ID)
			if err != nil || existing != nil {
				return existing, err
			}
		}
		return createNamed(w, folder, nameTemplate(doc.Metadata, "Document"), func(name string) (*DocumentLink, error) {
			return w.CreateDocumentLink(ctx, folder, name, doc.Reference)
		})
	})
}

// UpdateDocumentLink adds a version to the document linked at path and
// points the link at it.
func (s *Service) UpdateDocumentLink(ctx context.Context, path repopath.Path, mediaType string, r io.Reader, metadata Metadata, opts Options) (*DocumentLink, error) {
	return run(ctx, s, "update_document_link", func(w *work) (*DocumentLink, error) {
		link, err := w.GetDocumentLink(ctx, path)
		if err != nil {
			return nil, err
		}
		if link == nil {
			if !opts.Has(CreateMissingItem) {
				return nil, &ObjectNameError{Path: path}
			}
			if err := validateMediaType(mediaType); err != nil {
				return nil, err
			}
			return w.createLink(path, mediaType, r, metadata, opts)
		}
		if err := w.requireOpen(link.ParentID, path); err != nil {
			return nil, err
		}
		prev, err := w.getDocument(Reference{ID: link.Reference.ID})
		if err != nil {
			return nil, err
		}
		doc, err := w.newVersion(prev, mediaType, r, metadata)
		if err != nil {
			return nil, err
		}
		updated, err := w.UpdateDocumentLink(ctx, link, doc.Reference)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, &ObjectNameError{Path: path}
		}
		s.logger.Info("link updated", "path", updated.Path, "ref", updated.Reference)
		return updated, nil
	})
}

// UpdateDocumentLinkToReference points the link at path at another document
// version.
func (s *Service) UpdateDocumentLinkToReference(ctx context.Context, path repopath.Path, ref Reference, opts Options) (*DocumentLink, error) {
	return run(ctx, s, "update_document_link", func(w *work) (*DocumentLink, error) {
		link, err := w.GetDocumentLink(ctx, path)
		if err != nil {
			return nil, err
		}
		if link == nil {
			if !opts.Has(CreateMissingItem) {
				return nil, &ObjectNameError{Path: path}
			}
			return w.createLinkToReference(path, ref, opts)
		}
		if err := w.requireOpen(link.ParentID, path); err != nil {
			return nil, err
		}
		doc, err := w.getDocument(ref)
		if err != nil {
			return nil, err
		}
		updated, err := w.UpdateDocumentLink(ctx, link, doc.Reference)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, &ObjectNameError{Path: path}
		}
		return updated, nil
	})
}

// CopyObject copies the workspace or link at src to dst.
func (s *Service) CopyObject(ctx context.Context, src, dst repopath.Path, opts Options) (Object, error) {
	return run(ctx, s, "copy_object", func(w *work) (Object, error) {
		info, err := w.GetInfo(ctx, src)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, &ObjectNameError{Path: src}
		}
		if info.Type == TypeWorkspace {
			return w.copyWorkspace(src, dst, opts)
		}
		return w.copyLink(src, dst, opts)
	})
}

func (s *Service) CopyDocumentLink(ctx context.Context, src, dst repopath.Path, opts Options) (*DocumentLink, error) {
	return run(ctx, s, "copy_document_link", func(w *work) (*DocumentLink, error) {
		return w.copyLink(src, dst, opts)
	})
}

func (s *Service) CopyWorkspace(ctx context.Context, src, dst repopath.Path, opts Options) (*Folder, error) {
	return run(ctx, s, "copy_workspace", func(w *work) (*Folder, error) {
		return w.copyWorkspace(src, dst, opts)
	})
}

func (w *work) copyLink(src, dst repopath.Path, opts Options) (*DocumentLink, error) {
	if _, err := w.openFolder(dst.Parent(), opts.Has(CreateMissingParent)); err != nil {
		return nil, err
	}
	link, err := w.CopyDocumentLink(w.ctx, src, dst, false)
	if err != nil {
		return nil, err
	}
	w.s.logger.Info("link copied", "from", src, "to", link.Path)
	return link, nil
}

func (w *work) copyWorkspace(src, dst repopath.Path, opts Options) (*Folder, error) {
	if _, err := w.openFolder(dst.Parent(), opts.Has(CreateMissingParent)); err != nil {
		return nil, err
	}
	folder, err := w.CopyFolder(w.ctx, src, dst, false)
	if err != nil {
		return nil, err
	}
	w.s.logger.Info("workspace copied", "from", src, "to", folder.Path)
	return folder, nil
}

// CreateWorkspaceByName creates a workspace at path.
func (s *Service) CreateWorkspaceByName(ctx context.Context, path repopath.Path, state State, metadata Metadata, opts Options) (*Folder, error) {
	if err := validateState(state); err != nil {
		return nil, err
	}
	return run(ctx, s, "create_workspace", func(w *work) (*Folder, error) {
		return w.createWorkspace(path, state, metadata, opts)
	})
}

func (w *work) createWorkspace(path repopath.Path, state State, metadata Metadata, opts Options) (*Folder, error) {
	name, err := objectName(path)
	if err != nil {
		return nil, err
	}
	parent, err := w.openFolder(path.Parent(), opts.Has(CreateMissingParent))
	if err != nil {
		return nil, err
	}
	folder, err := w.CreateFolder(w.ctx, parent, name, state, metadata)
	if err != nil {
		return nil, err
	}
	w.s.logger.Info("workspace created", "path", folder.Path, "state", state)
	return folder, nil
}

// CreateWorkspaceAndName creates a workspace under parentPath with a name
// generated from its metadata.
func (s *Service) CreateWorkspaceAndName(ctx context.Context, parentPath repopath.Path, state State, metadata Metadata, opts Options) (*Folder, error) {
	if err := validateState(state); err != nil {
		return nil, err
	}
	return run(ctx, s, "create_workspace", func(w *work) (*Folder, error) {
		parent, err := w.openFolder(parentPath, opts.Has(CreateMissingParent))
		if err != nil {
			return nil, err
		}
		return createNamed(w, parent, nameTemplate(metadata, "Workspace"), func(name string) (*Folder, error) {
			return w.CreateFolder(ctx, parent, name, state, metadata)
		})
	})
}

// UpdateWorkspaceByName changes the state of a workspace and merges
// metadata into it. Leaving the Open state fixes every link in the subtree
// to its current version; returning to Open releases them. An empty state
// keeps the current one.
func (s *Service) UpdateWorkspaceByName(ctx context.Context, path repopath.Path, state State, metadata Metadata, opts Options) (*Folder, error) {
	if state != "" {
		if err := validateState(state); err != nil {
			return nil, err
		}
	}
	return run(ctx, s, "update_workspace", func(w *work) (*Folder, error) {
		folder, err := w.GetFolder(ctx, path)
		if err != nil {
			return nil, err
		}
		if folder == nil {
			if !opts.Has(CreateMissingItem) {
				return nil, &WorkspaceError{Path: path}
			}
			if state == "" {
				state = StateOpen
			}
			return w.createWorkspace(path, state, metadata, opts)
		}
		if state == "" {
			state = folder.State
		}
		switch {
		case folder.State == StateOpen && state != StateOpen:
			err = w.LockVersions(ctx, folder.ID)
		case folder.State != StateOpen && state == StateOpen:
			err = w.UnlockVersions(ctx, folder.ID)
		}
		if err != nil {
			return nil, err
		}
		updated, err := w.UpdateFolder(ctx, folder, state, folder.Metadata.Merge(metadata))
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, &WorkspaceError{Path: path}
		}
		if state != folder.State {
			s.logger.Info("workspace state changed", "path", updated.Path, "from", folder.State, "to", state)
		}
		return updated, nil
	})
}

// DeleteDocument removes the link to docID from the workspace at
// folderPath.
func (s *Service) DeleteDocument(ctx context.Context, folderPath repopath.Path, docID id.ID) ([]Object, error) {
	return run(ctx, s, "delete_document", func(w *work) ([]Object, error) {
		objs, err := w.DeleteObject(ctx, folderPath.AddID(docID))
		if errors.Is(err, ErrInvalidObjectName) {
			return nil, &DocumentIDError{ID: docID.String()}
		}
		return objs, err
	})
}

// DeleteObjectByName marks the object at path deleted. Deleting a deleted
// object changes nothing.
func (s *Service) DeleteObjectByName(ctx context.Context, path repopath.Path) ([]Object, error) {
	return run(ctx, s, "delete_object", func(w *work) ([]Object, error) {
		objs, err := w.DeleteObject(ctx, path)
		if err == nil && len(objs) > 0 {
			s.logger.Info("object deleted", "path", path)
		}
		return objs, err
	})
}

func (s *Service) UndeleteObjectByName(ctx context.Context, path repopath.Path) ([]Object, error) {
	return run(ctx, s, "undelete_object", func(w *work) ([]Object, error) {
		objs, err := w.UndeleteObject(ctx, path)
		if err == nil && len(objs) > 0 {
			s.logger.Info("object restored", "path", path)
		}
		return objs, err
	})
}

// GetObjectByName returns the workspace or link at path.
func (s *Service) GetObjectByName(ctx context.Context, path repopath.Path) (Object, error) {
	return run(ctx, s, "get_object", func(w *work) (Object, error) {
		return w.getObject(path)
	})
}

func (w *work) getObject(path repopath.Path) (Object, error) {
	info, err := w.GetInfo(w.ctx, path)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, &ObjectNameError{Path: path}
	}
	if info.Type == TypeWorkspace {
		folder, err := w.GetFolder(w.ctx, path)
		if err != nil {
			return nil, err
		}
		if folder == nil {
			return nil, &ObjectNameError{Path: path}
		}
		return folder, nil
	}
	return w.getLink(path)
}

func (s *Service) GetWorkspaceByName(ctx context.Context, path repopath.Path) (*Folder, error) {
	return run(ctx, s, "get_workspace", func(w *work) (*Folder, error) {
		folder, err := w.GetFolder(ctx, path)
		if err != nil {
			return nil, err
		}
		if folder == nil {
			return nil, &WorkspaceError{Path: path}
		}
		return folder, nil
	})
}

// GetData copies the content of the document version linked at path to dst.
func (s *Service) GetData(ctx context.Context, path repopath.Path, dst io.Writer) (*DocumentLink, error) {
	link, err := s.GetDocumentLink(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.copyBlob(ctx, link.Reference.Version, dst); err != nil {
		return nil, err
	}
	return link, nil
}

// GetDataByReference copies the content of a document version to dst.
func (s *Service) GetDataByReference(ctx context.Context, ref Reference, dst io.Writer) (*Document, error) {
	doc, err := s.GetDocument(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.copyBlob(ctx, doc.Version, dst); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) copyBlob(ctx context.Context, key id.ID, dst io.Writer) error {
	r, err := s.blobs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("opening blob %s: %w", key, err)
	}
	defer r.Close()
	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("reading blob %s: %w", key, err)
	}
	return nil
}

// Catalogue lists documents whose metadata matches f. With searchHistory
// every version is considered and the latest matching version of each
// document is returned.
func (s *Service) Catalogue(ctx context.Context, f MetadataFilter, searchHistory bool) (docs []*Document, err error) {
	defer func(start time.Time) { s.metrics.ObserveOperation("catalogue", start, err) }(time.Now())

	latest := map[id.ID]int{}
	for doc, err := range s.database.Documents(ctx, searchHistory) {
		if err != nil {
			return nil, err
		}
		if !f.Match(doc.Metadata) {
			continue
		}
		if !searchHistory {
			docs = append(docs, doc)
			continue
		}
		i, seen := latest[doc.ID]
		switch {
		case !seen:
			latest[doc.ID] = len(docs)
			docs = append(docs, doc)
		case !doc.Created.Before(docs[i].Created):
			docs[i] = doc
		}
	}
	return docs, nil
}

// CatalogueByName lists the links and workspaces matching path whose
// metadata matches f. Unless NoImplicitWildcard is set, a path without
// wildcards or document ids lists the contents of the workspace it names.
func (s *Service) CatalogueByName(ctx context.Context, path repopath.Path, f MetadataFilter, opts Options) (objs []Object, err error) {
	defer func(start time.Time) { s.metrics.ObserveOperation("catalogue_by_name", start, err) }(time.Now())

	if !opts.Has(NoImplicitWildcard) && !hasDocumentID(path) && (path.IsEmpty() || !path.IsWildcard()) {
		path = path.AddName("*")
	}
	search := SearchOptions{IncludeDeleted: opts.Has(FreeSearch), AllVersions: opts.Has(AllVersions)}

	for link, err := range s.database.Links(ctx, path, search) {
		if err != nil {
			return nil, err
		}
		if f.Match(link.Metadata) {
			objs = append(objs, link)
		}
	}
	for folder, err := range s.database.Folders(ctx, path, search) {
		if err != nil {
			return nil, err
		}
		if f.Match(folder.Metadata) {
			objs = append(objs, folder)
		}
	}
	return objs, nil
}

// hasDocumentID reports whether an id element below the first names a
// document.
func hasDocumentID(path repopath.Path) bool {
	for i, e := range path.Elements() {
		if i > 0 && e.IsID() {
			return true
		}
	}
	return false
}

// ParseReference is ParseReference with the version read as a key of the
// blob store.
func (s *Service) ParseReference(text string) (Reference, error) {
	docPart, versionPart, hasVersion := strings.Cut(text, "@")
	ref, err := ParseReference(docPart)
	if err != nil || !hasVersion {
		return ref, err
	}
	if ref.Version, err = s.blobs.ParseKey(versionPart); err != nil {
		return Reference{}, &ReferenceError{Text: text}
	}
	return ref, nil
}

// CatalogueHistory lists the versions of the referenced document whose
// metadata matches f, oldest first.
func (s *Service) CatalogueHistory(ctx context.Context, ref Reference, f MetadataFilter) ([]*Document, error) {
	return run(ctx, s, "catalogue_history", func(w *work) ([]*Document, error) {
		history, err := w.GetDocumentHistory(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			return nil, &ReferenceError{Text: ref.String()}
		}
		var docs []*Document
		for _, doc := range history {
			if f.Match(doc.Metadata) {
				docs = append(docs, doc)
			}
		}
		return docs, nil
	})
}

// Publish copies the object at path under the same parent as version label
// and returns the copy. Links in the copy stay on their current document
// versions.
func (s *Service) Publish(ctx context.Context, path repopath.Path, label string) (Object, error) {
	if err := validateLabel(label); err != nil {
		return nil, err
	}
	return run(ctx, s, "publish", func(w *work) (Object, error) {
		info, err := w.GetInfo(ctx, path)
		if err != nil {
			return nil, err
		}
		if info == nil || info.ID.IsRoot() {
			return nil, &ObjectNameError{Path: path}
		}
		published, err := w.Publish(ctx, info.ID, label)
		if err != nil {
			return nil, err
		}
		return w.getObject(repopath.Root.AddID(published))
	})
}
