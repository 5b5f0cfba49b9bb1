// Package converter wraps the out-of-process GLB to USDZ conversion.
//
// A Converter makes exactly one attempt per call and reports one of three
// outcomes: the derived bytes, a tool that could not be started, or a tool
// that ran and did not produce a usable archive. It never retries and never
// touches the registry; deciding what an outcome means for an asset is the
// caller's job.
//
// The Blender implementation shells out to a headless Blender with a bundled
// export script. Output is accepted only when it is a zip archive whose first
// entry is a USD layer and whose bytes differ from the input.
package converter
