package domain

// MergeExternalRefs merges src into dst key-wise. Existing entries in dst
// are never overwritten; enrichment adds references, it does not replace
// ones the user may have corrected. Allocates when dst is nil.
func MergeExternalRefs(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		if v == "" {
			continue
		}
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}

// OverlayExternalRefs merges src into dst key-wise, with src winning on
// conflict. Explicit edits replace references; empty values are skipped
// so an omitted key never clears one. Allocates when dst is nil.
func OverlayExternalRefs(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		if v == "" {
			continue
		}
		dst[k] = v
	}
	return dst
}
