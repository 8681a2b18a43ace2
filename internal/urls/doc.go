// Package urls keeps every project and documentation URL in one place.
//
// Usage:
//
//	import "github.com/muurk/husky/internal/urls"
//
//	fmt.Printf("For more information, see: %s\n", urls.TroubleshootingGuide)
package urls
