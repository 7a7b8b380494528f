package content

import "fmt"

// digestSeparator keeps the content and metadata canonical form from colliding
// (e.g. content "a" with metadata "b" vs content "ab" with empty metadata).
const digestSeparator = "\x1f"

// Digest computes the integrity fingerprint over a version's content and metadata.
// It is a rolling multiply-xor checksum for drift detection, not tamper evidence:
// deterministic, fixed width, O(len(content)).
func Digest(contentBody string, metadata Metadata) string {
	input := contentBody + digestSeparator + metadata.Canonical()
	var hash uint64 = 0xcbf29ce484222325
	for i := 0; i < len(input); i++ {
		hash ^= uint64(input[i])
		hash *= 0x100000001b3
	}
	return fmt.Sprintf("%016x", hash)
}

// verifyDigest recomputes a stored version's digest and reports a mismatch loudly.
func verifyDigest(version Version) error {
	meta, err := version.Metadata()
	if err != nil {
		return err
	}
	if computed := Digest(version.Content, meta); computed != version.Digest {
		return fmt.Errorf("%w: version %s digest mismatch (stored %s, computed %s)",
			ErrIntegrityViolation, version.VersionID, version.Digest, computed)
	}
	return nil
}
