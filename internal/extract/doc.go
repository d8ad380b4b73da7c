// Package extract turns a Gmail message part tree into a forwardable body
// and a list of image payloads.
//
// Gmail parts are first converted into a small closed set of node types
// (Container, TextLeaf, ImageLeaf, Other) by FromGmail, which also
// base64-decodes inline bodies. Extract then walks that tree depth-first:
// the first text/plain body wins, every image is collected in order, and
// image attachments stored out of line are resolved through a FetchFunc.
package extract
