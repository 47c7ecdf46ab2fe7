// Package protocol defines the line-oriented wire format between a host and
// a worker.
//
// Each request is one JSON object on one line:
//
//	{"Type":"init","Script":"<base64>","Names":["add"],"ModulePath":[]}
//	{"Type":"call","Func":"add","Args":[2,3]}
//
// Each response is {"Result":<any>,"Error":"<string>"} followed by a newline.
// Two profiles exist and are never auto-detected:
//
//   - framed: Type is required and responses are wrapped as
//     ##gospider@start##{...}##gospider@end##
//   - plain: the request kind is inferred from which fields are present and
//     responses are bare JSON.
//
// On failure Result echoes the raw request line and Error carries the message.
package protocol
