// Package transformers holds named value transformers: encode and decode
// functions for attribute values SQLite cannot store natively.
//
// Transformers are registered by name in a Registry. A forward transformer
// only encodes; a reversible transformer also decodes. A value of the wrong
// input type is never transformed.
//
//	transformers.Register()
//	chip, err := transformers.Apply[int64](transformers.Default, transformers.StringToNumber, "981000123")
//
// Scripted transformers are Starlark modules defining transform(value) and,
// for reversible ones, reverse(value):
//
//	err := transformers.SetScriptTransformer(transformers.Default, "Upper", `
//	def transform(value):
//	    return value.upper()
//	`)
package transformers
