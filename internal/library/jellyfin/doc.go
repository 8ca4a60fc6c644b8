// Package jellyfin lists the movies and series in a Jellyfin user library.
//
// The client speaks the Jellyfin items API with an API key in the X-Emby-Token
// header and maps each item onto a media.Subject. HTTP failures are tagged with
// the services error markers so the pipeline can tell an expired key (fatal)
// from a restarting server (transient).
package jellyfin
