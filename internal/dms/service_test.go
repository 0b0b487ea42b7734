package dms_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
	"github.com/DoctaneDMS/dms-service-sql/internal/testutil"
)

func path(s string) repopath.Path { return repopath.MustParse(s) }

func put(t *testing.T, h *testutil.Harness, p, content string, metadata dms.Metadata) *dms.DocumentLink {
	t.Helper()
	link, err := h.Service.CreateDocumentLink(context.Background(), path(p), "text/plain", strings.NewReader(content), metadata, dms.CreateMissingParent)
	if err != nil {
		t.Fatalf("CreateDocumentLink(%q) error = %v", p, err)
	}
	return link
}

func data(t *testing.T, h *testutil.Harness, p string) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := h.Service.GetData(context.Background(), path(p), &buf); err != nil {
		t.Fatalf("GetData(%q) error = %v", p, err)
	}
	return buf.String()
}

func names(objs []dms.Object) []string {
	var out []string
	for _, o := range objs {
		out = append(out, o.ObjectPath().String())
	}
	return out
}

func TestService_CreateDocumentLink(t *testing.T) {
	ctx := context.Background()

	t.Run("creates parents and stores content", func(t *testing.T) {
		h := testutil.NewHarness(t)
		link := put(t, h, "a/b/doc.txt", "hello", dms.Metadata{"author": "kim"})

		if got := link.Path.String(); got != "a/b/doc.txt" {
			t.Errorf("Path = %q, want a/b/doc.txt", got)
		}
		if link.Length != 5 {
			t.Errorf("Length = %d, want 5", link.Length)
		}
		if !bytes.Equal(link.Digest, testutil.SHA256([]byte("hello"))) {
			t.Errorf("Digest = %x, want sha256 of content", link.Digest)
		}
		if got := data(t, h, "a/b/doc.txt"); got != "hello" {
			t.Errorf("GetData() = %q, want hello", got)
		}
		doc, err := h.Service.GetDocument(ctx, link.Reference)
		if err != nil {
			t.Fatalf("GetDocument() error = %v", err)
		}
		if author, _ := doc.Metadata.String("author"); author != "kim" {
			t.Errorf("author = %q, want kim", author)
		}
	})

	t.Run("missing parent", func(t *testing.T) {
		h := testutil.NewHarness(t)
		_, err := h.Service.CreateDocumentLink(ctx, path("nope/doc.txt"), "text/plain", strings.NewReader("x"), nil, 0)
		if !errors.Is(err, dms.ErrInvalidWorkspace) {
			t.Fatalf("CreateDocumentLink() error = %v, want ErrInvalidWorkspace", err)
		}
		if h.Blobs.Len() != 0 {
			t.Errorf("blobs = %d, want 0", h.Blobs.Len())
		}
	})

	t.Run("media type required", func(t *testing.T) {
		h := testutil.NewHarness(t)
		_, err := h.Service.CreateDocumentLink(ctx, path("doc.txt"), "", strings.NewReader("x"), nil, 0)
		if !errors.Is(err, dms.ErrValidation) {
			t.Fatalf("CreateDocumentLink() error = %v, want ErrValidation", err)
		}
	})

	t.Run("name taken removes the blob again", func(t *testing.T) {
		h := testutil.NewHarness(t)
		put(t, h, "doc.txt", "first", nil)
		_, err := h.Service.CreateDocumentLink(ctx, path("doc.txt"), "text/plain", strings.NewReader("second"), nil, 0)
		if !errors.Is(err, dms.ErrNameConflict) {
			t.Fatalf("CreateDocumentLink() error = %v, want ErrNameConflict", err)
		}
		if h.Blobs.Len() != 1 {
			t.Errorf("blobs = %d, want 1", h.Blobs.Len())
		}
		if got := data(t, h, "doc.txt"); got != "first" {
			t.Errorf("GetData() = %q, want first", got)
		}
	})

	t.Run("wildcard name", func(t *testing.T) {
		h := testutil.NewHarness(t)
		_, err := h.Service.CreateDocumentLink(ctx, path("doc*"), "text/plain", strings.NewReader("x"), nil, 0)
		if !errors.Is(err, dms.ErrInvalidObjectName) {
			t.Fatalf("CreateDocumentLink() error = %v, want ErrInvalidObjectName", err)
		}
	})
}

func TestService_CreateDocumentLinkAndName(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)
	if _, err := h.Service.CreateWorkspaceByName(ctx, path("inbox"), dms.StateOpen, nil, 0); err != nil {
		t.Fatalf("CreateWorkspaceByName() error = %v", err)
	}

	var got []string
	for range 3 {
		link, err := h.Service.CreateDocumentLinkAndName(ctx, path("inbox"), "application/pdf", strings.NewReader("%PDF"), dms.Metadata{"DocumentTitle": "report.pdf"}, 0)
		if err != nil {
			t.Fatalf("CreateDocumentLinkAndName() error = %v", err)
		}
		got = append(got, link.Path.String())
	}
	want := []string{"inbox/report.pdf", "inbox/report_1.pdf", "inbox/report_2.pdf"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", got, want)
	}

	link, err := h.Service.CreateDocumentLinkAndName(ctx, path("inbox"), "text/plain", strings.NewReader("x"), nil, 0)
	if err != nil {
		t.Fatalf("CreateDocumentLinkAndName() error = %v", err)
	}
	if link.Path.String() != "inbox/Document" {
		t.Errorf("Path = %q, want inbox/Document", link.Path)
	}
}

func TestService_LinkToReference(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)

	ref, err := h.Service.CreateDocument(ctx, "text/plain", strings.NewReader("shared"), dms.Metadata{"name": "shared.txt"})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if _, err := h.Service.CreateWorkspaceByName(ctx, path("w"), dms.StateOpen, nil, 0); err != nil {
		t.Fatalf("CreateWorkspaceByName() error = %v", err)
	}

	first, err := h.Service.CreateDocumentLinkAndNameToReference(ctx, path("w"), ref, 0)
	if err != nil {
		t.Fatalf("CreateDocumentLinkAndNameToReference() error = %v", err)
	}
	if first.Path.String() != "w/shared.txt" {
		t.Errorf("Path = %q, want w/shared.txt", first.Path)
	}

	t.Run("existing link returned", func(t *testing.T) {
		again, err := h.Service.CreateDocumentLinkToReference(ctx, path("w/other.txt"), ref, dms.ReturnExistingLinkToSameDocument)
		if err != nil {
			t.Fatalf("CreateDocumentLinkToReference() error = %v", err)
		}
		if again.ID != first.ID {
			t.Errorf("got link %s, want existing %s", again.ID, first.ID)
		}
	})

	t.Run("second link", func(t *testing.T) {
		other, err := h.Service.CreateDocumentLinkToReference(ctx, path("w/other.txt"), ref, 0)
		if err != nil {
			t.Fatalf("CreateDocumentLinkToReference() error = %v", err)
		}
		if other.Reference != first.Reference {
			t.Errorf("Reference = %s, want %s", other.Reference, first.Reference)
		}
		if got := data(t, h, "w/other.txt"); got != "shared" {
			t.Errorf("GetData() = %q, want shared", got)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := h.Service.CreateDocumentLinkToReference(ctx, path("w/ghost.txt"), dms.Reference{ID: id.New()}, 0)
		if !errors.Is(err, dms.ErrInvalidReference) {
			t.Fatalf("CreateDocumentLinkToReference() error = %v, want ErrInvalidReference", err)
		}
	})

	t.Run("repoint", func(t *testing.T) {
		ref2, err := h.Service.CreateDocument(ctx, "text/plain", strings.NewReader("other"), nil)
		if err != nil {
			t.Fatalf("CreateDocument() error = %v", err)
		}
		link, err := h.Service.UpdateDocumentLinkToReference(ctx, path("w/other.txt"), ref2, 0)
		if err != nil {
			t.Fatalf("UpdateDocumentLinkToReference() error = %v", err)
		}
		if link.Reference != ref2 {
			t.Errorf("Reference = %s, want %s", link.Reference, ref2)
		}
		if got := data(t, h, "w/other.txt"); got != "other" {
			t.Errorf("GetData() = %q, want other", got)
		}
	})
}

func TestService_UpdateDocumentLink(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)
	link := put(t, h, "w/doc.txt", "v1", dms.Metadata{"author": "kim", "draft": true})

	h.Clock.Advance(time.Minute)
	updated, err := h.Service.UpdateDocumentLink(ctx, path("w/doc.txt"), "", strings.NewReader("v2"), dms.Metadata{"draft": nil}, 0)
	if err != nil {
		t.Fatalf("UpdateDocumentLink() error = %v", err)
	}
	if updated.Reference.ID != link.Reference.ID || updated.Reference.Version == link.Reference.Version {
		t.Errorf("Reference = %s, want a new version of %s", updated.Reference, link.Reference.ID)
	}
	if got := data(t, h, "w/doc.txt"); got != "v2" {
		t.Errorf("GetData() = %q, want v2", got)
	}

	doc, err := h.Service.GetDocument(ctx, updated.Reference)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if _, ok := doc.Metadata["draft"]; ok {
		t.Errorf("draft still set: %v", doc.Metadata)
	}
	if author, _ := doc.Metadata.String("author"); author != "kim" {
		t.Errorf("author = %q, want kim", author)
	}
	if doc.MediaType != "text/plain" {
		t.Errorf("MediaType = %q, want text/plain", doc.MediaType)
	}

	t.Run("metadata only keeps content", func(t *testing.T) {
		h.Clock.Advance(time.Minute)
		ref, err := h.Service.UpdateDocument(ctx, link.Reference.ID, "", nil, dms.Metadata{"reviewed": true})
		if err != nil {
			t.Fatalf("UpdateDocument() error = %v", err)
		}
		var buf bytes.Buffer
		if _, err := h.Service.GetDataByReference(ctx, ref, &buf); err != nil {
			t.Fatalf("GetDataByReference() error = %v", err)
		}
		if buf.String() != "v2" {
			t.Errorf("GetDataByReference() = %q, want v2", buf.String())
		}
		if got := data(t, h, "w/doc.txt"); got != "v2" {
			t.Errorf("GetData() = %q, want v2", got)
		}
	})

	t.Run("history", func(t *testing.T) {
		docs, err := h.Service.CatalogueHistory(ctx, link.Reference, dms.MetadataFilter{})
		if err != nil {
			t.Fatalf("CatalogueHistory() error = %v", err)
		}
		if len(docs) != 3 {
			t.Fatalf("versions = %d, want 3", len(docs))
		}
		if docs[0].Version != link.Reference.Version {
			t.Errorf("first version = %s, want %s", docs[0].Version, link.Reference.Version)
		}
	})

	t.Run("missing link", func(t *testing.T) {
		_, err := h.Service.UpdateDocumentLink(ctx, path("w/new.txt"), "text/plain", strings.NewReader("x"), nil, 0)
		if !errors.Is(err, dms.ErrInvalidObjectName) {
			t.Fatalf("UpdateDocumentLink() error = %v, want ErrInvalidObjectName", err)
		}
		created, err := h.Service.UpdateDocumentLink(ctx, path("w/new.txt"), "text/plain", strings.NewReader("x"), nil, dms.CreateMissingItem)
		if err != nil {
			t.Fatalf("UpdateDocumentLink(CreateMissingItem) error = %v", err)
		}
		if created.Path.String() != "w/new.txt" {
			t.Errorf("Path = %q, want w/new.txt", created.Path)
		}
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := h.Service.UpdateDocument(ctx, id.New(), "text/plain", strings.NewReader("x"), nil)
		if !errors.Is(err, dms.ErrInvalidDocumentID) {
			t.Fatalf("UpdateDocument() error = %v, want ErrInvalidDocumentID", err)
		}
	})
}

func TestService_WorkspaceState(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)
	link := put(t, h, "case/doc.txt", "v1", nil)

	folder, err := h.Service.UpdateWorkspaceByName(ctx, path("case"), dms.StateClosed, dms.Metadata{"closedBy": "kim"}, 0)
	if err != nil {
		t.Fatalf("UpdateWorkspaceByName() error = %v", err)
	}
	if folder.State != dms.StateClosed {
		t.Errorf("State = %s, want Closed", folder.State)
	}

	if _, err := h.Service.UpdateDocument(ctx, link.Reference.ID, "", strings.NewReader("v2"), nil); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if got := data(t, h, "case/doc.txt"); got != "v1" {
		t.Errorf("GetData() in closed workspace = %q, want v1", got)
	}

	_, err = h.Service.CreateDocumentLink(ctx, path("case/more.txt"), "text/plain", strings.NewReader("x"), nil, 0)
	if !errors.Is(err, dms.ErrInvalidWorkspaceState) {
		t.Fatalf("CreateDocumentLink() error = %v, want ErrInvalidWorkspaceState", err)
	}
	_, err = h.Service.UpdateDocumentLink(ctx, path("case/doc.txt"), "", strings.NewReader("v3"), nil, 0)
	if !errors.Is(err, dms.ErrInvalidWorkspaceState) {
		t.Fatalf("UpdateDocumentLink() error = %v, want ErrInvalidWorkspaceState", err)
	}

	if _, err := h.Service.UpdateWorkspaceByName(ctx, path("case"), dms.StateOpen, nil, 0); err != nil {
		t.Fatalf("UpdateWorkspaceByName(Open) error = %v", err)
	}
	if _, err := h.Service.UpdateDocument(ctx, link.Reference.ID, "", strings.NewReader("v4"), nil); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if got := data(t, h, "case/doc.txt"); got != "v4" {
		t.Errorf("GetData() after reopening = %q, want v4", got)
	}

	got, err := h.Service.GetWorkspaceByName(ctx, path("case"))
	if err != nil {
		t.Fatalf("GetWorkspaceByName() error = %v", err)
	}
	if by, _ := got.Metadata.String("closedBy"); by != "kim" {
		t.Errorf("closedBy = %q, want kim", by)
	}

	t.Run("invalid state", func(t *testing.T) {
		_, err := h.Service.UpdateWorkspaceByName(ctx, path("case"), dms.State("Archived"), nil, 0)
		if !errors.Is(err, dms.ErrValidation) {
			t.Fatalf("UpdateWorkspaceByName() error = %v, want ErrValidation", err)
		}
	})

	t.Run("missing workspace", func(t *testing.T) {
		_, err := h.Service.UpdateWorkspaceByName(ctx, path("other"), dms.StateOpen, nil, 0)
		if !errors.Is(err, dms.ErrInvalidWorkspace) {
			t.Fatalf("UpdateWorkspaceByName() error = %v, want ErrInvalidWorkspace", err)
		}
		created, err := h.Service.UpdateWorkspaceByName(ctx, path("other"), "", nil, dms.CreateMissingItem)
		if err != nil {
			t.Fatalf("UpdateWorkspaceByName(CreateMissingItem) error = %v", err)
		}
		if created.State != dms.StateOpen {
			t.Errorf("State = %s, want Open", created.State)
		}
	})
}

func TestService_CreateWorkspaceAndName(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)

	a, err := h.Service.CreateWorkspaceAndName(ctx, repopath.Root, dms.StateOpen, dms.Metadata{"name": "case"}, 0)
	if err != nil {
		t.Fatalf("CreateWorkspaceAndName() error = %v", err)
	}
	b, err := h.Service.CreateWorkspaceAndName(ctx, repopath.Root, dms.StateOpen, dms.Metadata{"name": "case"}, 0)
	if err != nil {
		t.Fatalf("CreateWorkspaceAndName() error = %v", err)
	}
	if a.Path.String() != "case" || b.Path.String() != "case_1" {
		t.Errorf("paths = %q, %q, want case, case_1", a.Path, b.Path)
	}
}

func TestService_Publish(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)
	link := put(t, h, "w/doc.txt", "v1", nil)

	obj, err := h.Service.Publish(ctx, path("w"), "r1")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if obj.ObjectType() != dms.TypeWorkspace || obj.ObjectPath().String() != "w@r1" {
		t.Errorf("Publish() = %s %q, want workspace w@r1", obj.ObjectType(), obj.ObjectPath())
	}
	got, err := h.Service.GetObjectByName(ctx, path("w@r1"))
	if err != nil {
		t.Fatalf("GetObjectByName(w@r1) error = %v", err)
	}
	if got.ObjectID() != obj.ObjectID() {
		t.Errorf("GetObjectByName(w@r1) = %s, want %s", got.ObjectID(), obj.ObjectID())
	}

	if _, err := h.Service.UpdateDocument(ctx, link.Reference.ID, "", strings.NewReader("v2"), nil); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if got := data(t, h, "w@r1/doc.txt"); got != "v1" {
		t.Errorf("published content = %q, want v1", got)
	}
	if got := data(t, h, "w/doc.txt"); got != "v2" {
		t.Errorf("working content = %q, want v2", got)
	}

	for _, label := range []string{"", "r*"} {
		if _, err := h.Service.Publish(ctx, path("w"), label); !errors.Is(err, dms.ErrValidation) {
			t.Errorf("Publish(%q) error = %v, want ErrValidation", label, err)
		}
	}
	if _, err := h.Service.Publish(ctx, path("missing"), "r1"); !errors.Is(err, dms.ErrInvalidObjectName) {
		t.Errorf("Publish(missing) error = %v, want ErrInvalidObjectName", err)
	}
}

func TestService_DeleteAndCatalogue(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)
	put(t, h, "w/a.txt", "a", dms.Metadata{"author": "kim"})
	b := put(t, h, "w/b.txt", "b", nil)
	if _, err := h.Service.CreateWorkspaceByName(ctx, path("w/sub"), dms.StateOpen, nil, 0); err != nil {
		t.Fatalf("CreateWorkspaceByName() error = %v", err)
	}

	objs, err := h.Service.CatalogueByName(ctx, path("w"), dms.MetadataFilter{}, 0)
	if err != nil {
		t.Fatalf("CatalogueByName() error = %v", err)
	}
	if got := strings.Join(names(objs), ","); got != "w/a.txt,w/b.txt,w/sub" {
		t.Errorf("CatalogueByName() = %s", got)
	}

	deleted, err := h.Service.DeleteObjectByName(ctx, path("w/b.txt"))
	if err != nil {
		t.Fatalf("DeleteObjectByName() error = %v", err)
	}
	if len(deleted) != 1 {
		t.Fatalf("DeleteObjectByName() = %d objects, want 1", len(deleted))
	}
	again, err := h.Service.DeleteObjectByName(ctx, path("w/b.txt"))
	if err != nil || len(again) != 0 {
		t.Errorf("second DeleteObjectByName() = %v, %v, want nothing", again, err)
	}

	objs, err = h.Service.CatalogueByName(ctx, path("w"), dms.MetadataFilter{}, 0)
	if err != nil {
		t.Fatalf("CatalogueByName() error = %v", err)
	}
	if got := strings.Join(names(objs), ","); got != "w/a.txt,w/sub" {
		t.Errorf("CatalogueByName() after delete = %s", got)
	}
	objs, err = h.Service.CatalogueByName(ctx, path("w"), dms.MetadataFilter{}, dms.FreeSearch)
	if err != nil {
		t.Fatalf("CatalogueByName(FreeSearch) error = %v", err)
	}
	if len(objs) != 3 {
		t.Errorf("CatalogueByName(FreeSearch) = %v, want 3 objects", names(objs))
	}

	t.Run("metadata filter", func(t *testing.T) {
		f, err := dms.ParseMetadataFilter("$.author")
		if err != nil {
			t.Fatalf("ParseMetadataFilter() error = %v", err)
		}
		objs, err := h.Service.CatalogueByName(ctx, path("w"), f, 0)
		if err != nil {
			t.Fatalf("CatalogueByName() error = %v", err)
		}
		if got := strings.Join(names(objs), ","); got != "w/a.txt" {
			t.Errorf("CatalogueByName() = %s, want w/a.txt", got)
		}
	})

	t.Run("no implicit wildcard", func(t *testing.T) {
		objs, err := h.Service.CatalogueByName(ctx, path("w"), dms.MetadataFilter{}, dms.NoImplicitWildcard)
		if err != nil {
			t.Fatalf("CatalogueByName() error = %v", err)
		}
		if got := strings.Join(names(objs), ","); got != "w" {
			t.Errorf("CatalogueByName() = %s, want w", got)
		}
	})

	t.Run("undelete", func(t *testing.T) {
		if _, err := h.Service.UndeleteObjectByName(ctx, path("w/b.txt")); err != nil {
			t.Fatalf("UndeleteObjectByName() error = %v", err)
		}
		if got := data(t, h, "w/b.txt"); got != "b" {
			t.Errorf("GetData() = %q, want b", got)
		}
	})

	t.Run("delete document", func(t *testing.T) {
		if _, err := h.Service.DeleteDocument(ctx, path("w"), b.Reference.ID); err != nil {
			t.Fatalf("DeleteDocument() error = %v", err)
		}
		_, err := h.Service.DeleteDocument(ctx, path("w"), id.New())
		if !errors.Is(err, dms.ErrInvalidDocumentID) {
			t.Fatalf("DeleteDocument(unknown) error = %v, want ErrInvalidDocumentID", err)
		}
	})
}

func TestService_Catalogue(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)
	link := put(t, h, "w/a.txt", "a", dms.Metadata{"draft": true})
	put(t, h, "w/b.txt", "b", dms.Metadata{"author": "kim"})

	h.Clock.Advance(time.Minute)
	if _, err := h.Service.UpdateDocument(ctx, link.Reference.ID, "", nil, dms.Metadata{"draft": nil}); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}

	drafts, err := dms.ParseMetadataFilter("$.draft")
	if err != nil {
		t.Fatalf("ParseMetadataFilter() error = %v", err)
	}

	docs, err := h.Service.Catalogue(ctx, drafts, false)
	if err != nil {
		t.Fatalf("Catalogue() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("Catalogue(drafts) = %d documents, want 0", len(docs))
	}

	docs, err = h.Service.Catalogue(ctx, drafts, true)
	if err != nil {
		t.Fatalf("Catalogue(history) error = %v", err)
	}
	if len(docs) != 1 || docs[0].Reference != link.Reference {
		t.Errorf("Catalogue(drafts, history) = %v, want the first version of a.txt", docs)
	}

	all, err := h.Service.Catalogue(ctx, dms.MetadataFilter{}, true)
	if err != nil {
		t.Fatalf("Catalogue(all, history) error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Catalogue(all, history) = %d documents, want 2", len(all))
	}
	for _, doc := range all {
		if doc.ID == link.Reference.ID && doc.Version == link.Reference.Version {
			t.Errorf("Catalogue(all, history) returned superseded version %s", doc.Reference)
		}
	}
}

func TestService_Copy(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)
	put(t, h, "src/doc.txt", "x", nil)
	put(t, h, "src/inner/deep.txt", "y", nil)

	obj, err := h.Service.CopyObject(ctx, path("src"), path("dst/copy"), dms.CreateMissingParent)
	if err != nil {
		t.Fatalf("CopyObject() error = %v", err)
	}
	if obj.ObjectType() != dms.TypeWorkspace || obj.ObjectPath().String() != "dst/copy" {
		t.Errorf("CopyObject() = %s %q", obj.ObjectType(), obj.ObjectPath())
	}
	if got := data(t, h, "dst/copy/inner/deep.txt"); got != "y" {
		t.Errorf("GetData() = %q, want y", got)
	}

	link, err := h.Service.CopyDocumentLink(ctx, path("src/doc.txt"), path("src/doc2.txt"), 0)
	if err != nil {
		t.Fatalf("CopyDocumentLink() error = %v", err)
	}
	if link.Path.String() != "src/doc2.txt" {
		t.Errorf("Path = %q, want src/doc2.txt", link.Path)
	}

	if _, err := h.Service.UpdateWorkspaceByName(ctx, path("dst"), dms.StateFinalized, nil, 0); err != nil {
		t.Fatalf("UpdateWorkspaceByName() error = %v", err)
	}
	_, err = h.Service.CopyWorkspace(ctx, path("src"), path("dst/again"), 0)
	if !errors.Is(err, dms.ErrInvalidWorkspaceState) {
		t.Fatalf("CopyWorkspace() into finalized error = %v, want ErrInvalidWorkspaceState", err)
	}
}

func TestService_GetObjectByName(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)
	link := put(t, h, "w/doc.txt", "x", nil)

	obj, err := h.Service.GetObjectByName(ctx, path("w/doc.txt"))
	if err != nil {
		t.Fatalf("GetObjectByName() error = %v", err)
	}
	if got, ok := obj.(*dms.DocumentLink); !ok || got.ID != link.ID {
		t.Errorf("GetObjectByName() = %#v, want link %s", obj, link.ID)
	}

	obj, err = h.Service.GetObjectByName(ctx, path("w"))
	if err != nil {
		t.Fatalf("GetObjectByName() error = %v", err)
	}
	if _, ok := obj.(*dms.Folder); !ok {
		t.Errorf("GetObjectByName(w) = %T, want *dms.Folder", obj)
	}

	_, err = h.Service.GetObjectByName(ctx, path("w/none"))
	if !errors.Is(err, dms.ErrNotFound) {
		t.Errorf("GetObjectByName(missing) error = %v, want ErrNotFound", err)
	}
	_, err = h.Service.GetWorkspaceByName(ctx, path("none"))
	if !errors.Is(err, dms.ErrInvalidWorkspace) {
		t.Errorf("GetWorkspaceByName(missing) error = %v, want ErrInvalidWorkspace", err)
	}
}

func TestService_Metrics(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness(t)
	put(t, h, "w/doc.txt", "12345", nil)
	_, _ = h.Service.GetDocumentLink(ctx, path("w/missing"))

	if got := promtest.ToFloat64(h.Metrics.OperationsTotal.WithLabelValues("create_document_link", "ok")); got != 1 {
		t.Errorf("create_document_link ok = %v, want 1", got)
	}
	if got := promtest.ToFloat64(h.Metrics.OperationsTotal.WithLabelValues("get_document_link", "error")); got != 1 {
		t.Errorf("get_document_link error = %v, want 1", got)
	}
	if got := promtest.ToFloat64(h.Metrics.BlobBytesWritten); got != 5 {
		t.Errorf("blob bytes = %v, want 5", got)
	}
}

func TestService_ParseReference(t *testing.T) {
	h := testutil.NewHarness(t)
	link := put(t, h, "w/doc.txt", "v1", nil)

	ref, err := h.Service.ParseReference(link.Reference.String())
	if err != nil {
		t.Fatalf("ParseReference() error = %v", err)
	}
	if ref != link.Reference {
		t.Errorf("ParseReference() = %s, want %s", ref, link.Reference)
	}
	ref, err = h.Service.ParseReference(link.Reference.ID.String())
	if err != nil {
		t.Fatalf("ParseReference(no version) error = %v", err)
	}
	if !ref.Version.IsRoot() {
		t.Errorf("Version = %s, want root", ref.Version)
	}
	if _, err := h.Service.ParseReference(link.Reference.ID.String() + "@nope"); !errors.Is(err, dms.ErrInvalidReference) {
		t.Errorf("ParseReference(bad version) error = %v, want ErrInvalidReference", err)
	}
}
