// Package artifacts stores generated image and video bytes in a
// content-addressed blob store, either in memory or in an S3-compatible bucket.
package artifacts
