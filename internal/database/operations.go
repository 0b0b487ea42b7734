package database

import "github.com/DoctaneDMS/dms-service-sql/internal/database/statement"

// Fixed statements. Compiled path lookups live in projection.go.
var (
	createNode = statement.New(
		`INSERT INTO NODES (ID, PARENT_ID, NAME, VERSION, TYPE, CREATED) VALUES (?, ?, ?, '', ?, ?)`,
		"id", "parentId", "name", "type", "created")

	createFolder = statement.New(
		`INSERT INTO FOLDERS (ID, STATE, METADATA) VALUES (?, ?, ?)`,
		"id", "state", "metadata")

	createLink = statement.New(
		`INSERT INTO LINKS (ID, DOCUMENT_ID, VERSION_ID, FIXED) VALUES (?, ?, ?, ?)`,
		"id", "documentId", "versionId", "fixed")

	createDocument = statement.New(
		`INSERT INTO DOCUMENTS (ID, VERSION_ID) VALUES (?, ?)`,
		"documentId", "versionId")

	createVersion = statement.New(
		`INSERT INTO VERSIONS (DOCUMENT_ID, VERSION_ID, MEDIA_TYPE, LENGTH, DIGEST, METADATA, CREATED) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"documentId", "versionId", "mediaType", "length", "digest", "metadata", "created")

	updateDocument = statement.New(
		`UPDATE DOCUMENTS SET VERSION_ID = ? WHERE ID = ?`,
		"versionId", "documentId")

	moveUnfixedLinks = statement.New(
		`UPDATE LINKS SET VERSION_ID = ? WHERE DOCUMENT_ID = ? AND FIXED = FALSE`,
		"versionId", "documentId")

	updateLink = statement.New(
		`UPDATE LINKS SET DOCUMENT_ID = ?, VERSION_ID = ? WHERE ID = ?`,
		"documentId", "versionId", "id")

	updateFolder = statement.New(
		`UPDATE FOLDERS SET STATE = ?, METADATA = ? WHERE ID = ?`,
		"state", "metadata", "id")

	copyNode = statement.New(
		`INSERT INTO NODES (ID, PARENT_ID, NAME, VERSION, TYPE, DELETED, CREATED) SELECT ?, ?, NAME, VERSION, TYPE, DELETED, ? FROM NODES WHERE ID = ?`,
		"id", "parentId", "created", "sourceId")

	publishNode = statement.New(
		`INSERT INTO NODES (ID, PARENT_ID, NAME, VERSION, TYPE, DELETED, CREATED) SELECT ?, PARENT_ID, NAME, ?, TYPE, DELETED, ? FROM NODES WHERE ID = ?`,
		"id", "version", "created", "sourceId")

	copyFolder = statement.New(
		`INSERT INTO FOLDERS (ID, STATE, METADATA) SELECT ?, STATE, METADATA FROM FOLDERS WHERE ID = ?`,
		"id", "sourceId")

	copyLink = statement.New(
		`INSERT INTO LINKS (ID, DOCUMENT_ID, VERSION_ID, FIXED) SELECT ?, DOCUMENT_ID, VERSION_ID, FIXED FROM LINKS WHERE ID = ?`,
		"id", "sourceId")

	publishLink = statement.New(
		`INSERT INTO LINKS (ID, DOCUMENT_ID, VERSION_ID, FIXED) SELECT ?, DOCUMENT_ID, VERSION_ID, TRUE FROM LINKS WHERE ID = ?`,
		"id", "sourceId")

	fetchChildren = statement.New(
		`SELECT ID, TYPE FROM NODES WHERE PARENT_ID = ? AND ID <> PARENT_ID ORDER BY NAME, VERSION`,
		"parentId")

	fetchPathToID = statement.New(
		`WITH RECURSIVE ANCESTORS (ID, PARENT_ID, NAME, VERSION, DEPTH) AS (
			SELECT ID, PARENT_ID, NAME, VERSION, 0 FROM NODES WHERE ID = ?
			UNION ALL
			SELECT NODES.ID, NODES.PARENT_ID, NODES.NAME, NODES.VERSION, ANCESTORS.DEPTH + 1
			FROM NODES INNER JOIN ANCESTORS ON NODES.ID = ANCESTORS.PARENT_ID
			WHERE ANCESTORS.ID <> ANCESTORS.PARENT_ID
		)
		SELECT NAME, VERSION FROM ANCESTORS WHERE ID <> PARENT_ID ORDER BY DEPTH DESC`,
		"id")

	fetchLastNameLike = statement.New(
		`SELECT MAX(NAME) FROM NODES WHERE PARENT_ID = ? AND NAME LIKE ? ESCAPE '\'`,
		"parentId", "pattern")

	setDeleted = statement.New(
		`UPDATE NODES SET DELETED = ? WHERE ID = ?`,
		"deleted", "id")

	setFixed = statement.New(
		`WITH RECURSIVE SUBTREE (ID) AS (
			SELECT ?
			UNION
			SELECT NODES.ID FROM NODES INNER JOIN SUBTREE ON NODES.PARENT_ID = SUBTREE.ID
			WHERE NODES.ID <> NODES.PARENT_ID
		)
		UPDATE LINKS SET FIXED = ? WHERE ID IN (SELECT ID FROM SUBTREE)`,
		"id", "fixed")

	updateDigest = statement.New(
		`UPDATE VERSIONS SET DIGEST = ? WHERE DOCUMENT_ID = ? AND VERSION_ID = ?`,
		"digest", "documentId", "versionId")
)
