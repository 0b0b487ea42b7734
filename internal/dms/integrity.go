package dms

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// IntegrityStatus counts the document versions an integrity sweep looked at.
type IntegrityStatus struct {
	OK     int
	Failed int
	Fixed  int
	Errors int
}

func (s IntegrityStatus) String() string {
	return fmt.Sprintf("OK: %d, Failed: %d, Fixed: %d, Errors: %d", s.OK, s.Failed, s.Fixed, s.Errors)
}

func (s *IntegrityStatus) add(o IntegrityStatus) {
	s.OK += o.OK
	s.Failed += o.Failed
	s.Fixed += o.Fixed
	s.Errors += o.Errors
}

// CheckIntegrity recomputes the digest of every document version linked in
// the workspace at path and its descendants, deleted and published links
// included, and compares it with the stored digest. With fix set a
// mismatching digest is replaced by the computed one. Failures on single
// items or folders are counted as Errors and logged; the sweep continues
// past them. Only a missing or unreadable starting workspace is an error.
func (s *Service) CheckIntegrity(ctx context.Context, path repopath.Path, fix bool) (IntegrityStatus, error) {
	start := s.clock.Now()
	folder, err := s.GetWorkspaceByName(ctx, path)
	if err != nil {
		return IntegrityStatus{}, err
	}
	seen := map[Reference]bool{}
	status := s.checkFolder(ctx, folder, fix, seen)
	s.metrics.ObserveIntegrity(status.OK, status.Failed, status.Fixed, status.Errors)
	if err := ctx.Err(); err != nil {
		return status, err
	}
	s.logger.Info("integrity check finished", "path", path, "status", status.String(), "elapsed", s.clock.Now().Sub(start))
	return status, nil
}

func (s *Service) checkFolder(ctx context.Context, folder *Folder, fix bool, seen map[Reference]bool) IntegrityStatus {
	var status IntegrityStatus
	if ctx.Err() != nil {
		return status
	}
	children := repopath.Root.AddID(folder.ID).AddName("*").SetVersion(repopath.Wildcard("*"))
	search := SearchOptions{IncludeDeleted: true}

	// Collect before checking: fixes need a transaction, and the stream
	// holds a connection until it ends.
	var links []*DocumentLink
	for link, err := range s.database.Links(ctx, children, search) {
		if err != nil {
			s.logger.Error("listing links", "path", folder.Path, "error", err)
			status.Errors++
			links = nil
			break
		}
		links = append(links, link)
	}
	var folders []*Folder
	for sub, err := range s.database.Folders(ctx, children, search) {
		if err != nil {
			s.logger.Error("listing workspaces", "path", folder.Path, "error", err)
			status.Errors++
			folders = nil
			break
		}
		folders = append(folders, sub)
	}

	for _, link := range links {
		if seen[link.Reference] {
			continue
		}
		seen[link.Reference] = true
		status.add(s.checkLink(ctx, link, fix))
	}
	for _, sub := range folders {
		status.add(s.checkFolder(ctx, sub, fix, seen))
	}
	return status
}

func (s *Service) checkLink(ctx context.Context, link *DocumentLink, fix bool) IntegrityStatus {
	digest, err := s.digest(ctx, link.Reference)
	if err != nil {
		s.logger.Error("integrity check failed", "path", link.Path, "ref", link.Reference, "error", err)
		return IntegrityStatus{Errors: 1}
	}
	if bytes.Equal(digest, link.Digest) {
		return IntegrityStatus{OK: 1}
	}
	s.logger.Warn("digest mismatch", "path", link.Path, "ref", link.Reference)
	if !fix {
		return IntegrityStatus{Failed: 1}
	}
	_, err = run(ctx, s, "fix_digest", func(w *work) (struct{}, error) {
		return struct{}{}, w.UpdateDigest(ctx, link.Reference, digest)
	})
	if err != nil {
		s.logger.Error("fixing digest", "ref", link.Reference, "error", err)
		return IntegrityStatus{Failed: 1, Errors: 1}
	}
	return IntegrityStatus{Failed: 1, Fixed: 1}
}

func (s *Service) digest(ctx context.Context, ref Reference) ([]byte, error) {
	h := sha256.New()
	r, err := s.blobs.Get(ctx, ref.Version)
	if err != nil {
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	defer r.Close()
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return h.Sum(nil), nil
}
