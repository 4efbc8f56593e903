// Package textutil turns free text into path-safe slugs and filenames.
//
// Slugs are used for folder segments derived from content and term slugs;
// filenames come from remote URLs and uploaded names. Both go through Unicode
// decomposition so accented input maps onto plain ASCII where possible.
package textutil
