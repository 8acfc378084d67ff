// Package protocol defines the wire format shared by the hub and the client
// network layer.
//
// Every frame is a JSON object with exactly two top-level fields:
//
//	{ "type": <string>, "data": <object, shape depends on type> }
//
// Catalogue:
//
//	init         server→new client    {drawings, background, current_mode}
//	draw         client→server        {drawings, background}
//	update       server→other clients {drawings, background, current_mode}
//	clear        both directions      {drawings: [], background: "white", current_mode: "none"}
//	mode_change  client→server        {mode}
//	mode_update  server→all clients   {mode}
//
// Decode returns a Message with exactly one typed payload set. It rejects
// unknown type tags (ErrUnknownType), missing required fields, and invalid
// drawing items rather than coercing them.
package protocol
