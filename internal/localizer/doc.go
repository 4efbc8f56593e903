// Package localizer copies remote images embedded in a content body into the
// storage root.
//
// Each img reference on a foreign http(s) host is fetched through a rate
// limiter and a circuit breaker, validated as a decodable image, stored as a
// new media item parented to the content item at its planned location, and
// the reference is rewritten to the local URL. Items remember the URL they
// were fetched from, so a later run reuses an existing copy instead of
// downloading again.
package localizer
