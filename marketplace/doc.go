// Package marketplace provides the catalog of reusable code templates.
//
// Templates can be published, edited, searched with free text and filters,
// downloaded and rated. Downloads only ever increase; the rating is the mean
// of every 1-5 submission and therefore stays within [0, 5]. A sample catalog
// is embedded and can be loaded at startup with SeedSamples.
package marketplace
