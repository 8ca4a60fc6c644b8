// Package tmdb turns The Movie Database API into a catalog source.
//
// Client wraps the handful of endpoints mediawatch needs (now playing,
// upcoming, release certifications, series episode dates, recommendations)
// behind a shared rate limiter. Source maps those responses onto candidate
// facts for library subjects.
package tmdb
