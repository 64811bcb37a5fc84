// Package photos is the Google Photos client built on the resilient
// dispatcher in the parent package.
//
// It covers three surfaces:
//   - Picker API: create a picking session, wait for the user to finish
//     selecting in the browser, list the picked media items, delete the session
//   - Library API: list and search albums and media items created by this app
//   - Media bytes: download originals from a media item's baseUrl
//
// Listing methods return lazy iter.Seq2 sequences that fetch pages on demand.
//
// # OAuth2 Scopes
//
//   - photospicker.mediaitems.readonly for every Picker call
//   - photoslibrary.readonly.appcreateddata for Library reads
package photos
