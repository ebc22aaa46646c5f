// Package digest classifies provider status images by content digest.
//
// Classification is by exact SHA-1 digest only: an image is clean when
// its digest equals the clean reference digest, listed when it equals the
// listed reference digest, and unknown otherwise. No fuzzy or pixel-level
// matching is performed.
package digest
