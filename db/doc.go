/*

Package db is a versioned hypertext store.  Bytes are stored once under
permanent I-addresses; documents, versions and links refer to them by
range, so editing one document never disturbs another.

Vocabulary:

- tumbler: dotted multi-field address or width, see package tumbler
- I-space: permanent content addresses, doc.0.S.N
- V-space: a document's visible, editable positions, S.N
- subspace: first V digit; 1 text, 2 links, 0 and 3 type and metadata
- crum: one entry in a tree
- granfilade: the tree holding every byte and link by I-address
- poom: a document's tree mapping V-spans onto I-spans
- spanfilade: the reverse index from I-spans to the documents showing
	them and the links pointing at them
- specset: a list of (document, V-spans) naming content to act on
- endset: the source, target or type specset of a link
- transclusion: showing existing content in another place without
	copying bytes
- BERT token: the read or write access a session holds on an open
	document

Operations are methods on Session.  A session must open a document
before using it; creating a document or version opens it for write.

*/

package db
