// Package artifact mirrors the local build source tree into the staging
// bucket so build instances can fetch it without direct access to the
// operator's machine.
package artifact

import (
	"crypto/md5" // #nosec G501 -- S3 ETags are MD5 by definition
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	s3platform "github.com/psforge/psforge/internal/platform/s3"
	"github.com/psforge/psforge/internal/provisioning"
)

const (
	phase = "artifact"

	// Prefix is where the mirrored source tree lives in the staging bucket.
	Prefix = "source/"
)

// Publisher mirrors a local directory into the staging bucket.
type Publisher struct{}

// NewPublisher creates a new artifact publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish makes the bucket contents match the local source tree: changed and
// new files are uploaded, files removed locally are deleted remotely, and
// unchanged files are skipped. Returns the s3:// reference build instances
// use to fetch the tree, and records it in the pipeline state.
func (p *Publisher) Publish(ctx *provisioning.Context) (string, error) {
	bucket := ctx.State.Env.StagingBucket
	srcDir := ctx.Config.SourceDir

	local, err := scanLocal(srcDir)
	if err != nil {
		return "", &provisioning.ProvisioningError{Resource: "artifact", Err: err}
	}
	if len(local) == 0 {
		return "", &provisioning.ProvisioningError{
			Resource: "artifact",
			Err:      fmt.Errorf("source directory %s contains no files", srcDir),
		}
	}

	objects, err := ctx.Store.ListObjects(ctx, bucket, Prefix)
	if err != nil {
		return "", &provisioning.ProvisioningError{Resource: "artifact", Err: err}
	}
	remote := remoteSet(objects)

	uploaded, skipped := 0, 0
	for _, f := range local {
		key := Prefix + f.key
		if etag, ok := remote[key]; ok && etagMatches(etag, f.md5) {
			skipped++
			delete(remote, key)
			continue
		}
		if err := ctx.Store.UploadFile(ctx, bucket, key, f.path); err != nil {
			return "", &provisioning.ProvisioningError{
				Resource: "artifact",
				Err:      fmt.Errorf("failed to upload %s: %w", f.key, err),
			}
		}
		uploaded++
		delete(remote, key)
	}

	// Whatever is left in the remote set no longer exists locally.
	if len(remote) > 0 {
		stale := make([]string, 0, len(remote))
		for key := range remote {
			stale = append(stale, key)
		}
		sort.Strings(stale)
		if err := ctx.Store.DeleteObjects(ctx, bucket, stale); err != nil {
			return "", &provisioning.ProvisioningError{
				Resource: "artifact",
				Err:      fmt.Errorf("failed to prune stale objects: %w", err),
			}
		}
	}

	ctx.Observer.Printf("[%s] mirrored %s: %d uploaded, %d unchanged, %d pruned",
		phase, srcDir, uploaded, skipped, len(remote))

	ref := fmt.Sprintf("s3://%s/%s", bucket, Prefix)
	ctx.State.ArtifactRef = ref
	return ref, nil
}

type localFile struct {
	key  string // bucket key relative to the prefix, always forward slashes
	path string // absolute or cwd-relative filesystem path
	md5  string
}

// scanLocal walks the source tree and hashes every regular file. Symlinks
// and directories are skipped.
func scanLocal(dir string) ([]localFile, error) {
	var files []localFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		sum, err := fileMD5(path)
		if err != nil {
			return err
		}
		files = append(files, localFile{
			key:  filepath.ToSlash(rel),
			path: path,
			md5:  sum,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].key < files[j].key })
	return files, nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := md5.New() // #nosec G401 -- content comparison against S3 ETags, not security
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// etagMatches compares a local MD5 against an S3 ETag. Multipart ETags
// (containing a dash) cannot be compared to a plain MD5, so those objects
// are always re-uploaded.
func etagMatches(etag, md5sum string) bool {
	etag = strings.Trim(etag, `"`)
	if strings.Contains(etag, "-") {
		return false
	}
	return etag == md5sum
}

// remoteSet builds a key → ETag map from a listing.
func remoteSet(objects []s3platform.ObjectInfo) map[string]string {
	set := make(map[string]string, len(objects))
	for _, obj := range objects {
		set[obj.Key] = obj.ETag
	}
	return set
}
