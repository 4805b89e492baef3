// Package walker traverses a git repository's commit graph, discovering
// every unique blob and every place it appears, using go-git rather than
// shelling out to the git binary.
package walker

import (
	"container/heap"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/rs/zerolog/log"

	"github.com/gitctx/gitctx/internal/gitctxerr"
	"github.com/gitctx/gitctx/pkg/models"
)

// ProgressFunc is invoked periodically during the walk with the number of
// commits visited so far. Implementations must not block; a panicking or
// slow callback is recovered and does not interrupt the walk.
type ProgressFunc = func(commitsVisited int)

// Stats summarizes a completed walk.
type Stats struct {
	CommitsVisited int
	BlobsFound     int
	Errors         int
	// TwoPass reports whether the most recent walk used the two-pass
	// content-streaming strategy (either forced via WalkBlobsTwoPass or
	// chosen automatically because TwoPassThreshold was exceeded).
	TwoPass bool
}

// Walker walks the commit graph of a repository rooted at Path.
type Walker struct {
	Path string

	// TwoPassThreshold is the estimated commit count above which WalkBlobs
	// automatically switches to the two-pass strategy described in
	// SPEC_FULL.md §4.1. Zero disables the automatic switch.
	TwoPassThreshold int

	stats      Stats
	headCommit string
}

// New returns a Walker rooted at path.
func New(path string) *Walker {
	return &Walker{Path: path, TwoPassThreshold: 200_000}
}

// Stats returns the statistics of the most recently completed walk.
func (w *Walker) Stats() Stats { return w.stats }

// HeadCommit returns the HEAD commit SHA of the most recently completed
// walk, or "" if the repository had no HEAD.
func (w *Walker) HeadCommit() string { return w.headCommit }

// commitHeapItem orders commits by committer date, descending, for the
// reverse-chronological walk across all refs.
type commitHeapItem struct {
	commit *object.Commit
}

type commitHeap []commitHeapItem

func (h commitHeap) Len() int { return len(h) }
func (h commitHeap) Less(i, j int) bool {
	return h[i].commit.Committer.When.After(h[j].commit.Committer.When)
}
func (h commitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *commitHeap) Push(x any)        { *h = append(*h, x.(commitHeapItem)) }
func (h *commitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// WalkBlobs walks every ref's history in reverse chronological order across
// the whole graph, diffing each commit against its first parent (or an
// empty tree for root commits), and returns every unique blob with its
// full location list. Locations are ordered HEAD first, then by commit date
// descending.
//
// When TwoPassThreshold is positive, WalkBlobs first estimates the total
// commit count reachable from every ref (a cheap traversal that neither
// diffs trees nor reads blob content) and, if that estimate exceeds the
// threshold, delegates to the two-pass strategy automatically, per
// SPEC_FULL.md §4.1.
func (w *Walker) WalkBlobs(ctx context.Context, progress ProgressFunc) ([]models.BlobRecord, error) {
	if w.TwoPassThreshold > 0 {
		repo, err := git.PlainOpen(w.Path)
		if err != nil {
			return nil, gitctxerr.WalkerError("failed to open repository", err)
		}
		count, err := w.estimateCommitCount(repo, w.TwoPassThreshold)
		if err == nil && count > w.TwoPassThreshold {
			return w.walkTwoPass(ctx, progress)
		}
	}
	return w.walk(ctx, progress, true)
}

// WalkBlobsTwoPass forces the two-pass fallback strategy described in
// SPEC_FULL.md §4.1 regardless of TwoPassThreshold: the first pass collects
// blob SHAs and locations only (content is never read), and the second pass
// reads each blob's bytes from the object database one at a time into its
// record. The returned records hold every blob's content together.
func (w *Walker) WalkBlobsTwoPass(ctx context.Context, progress ProgressFunc) ([]models.BlobRecord, error) {
	return w.walkTwoPass(ctx, progress)
}

func (w *Walker) walkTwoPass(ctx context.Context, progress ProgressFunc) ([]models.BlobRecord, error) {
	records, err := w.walk(ctx, progress, false)
	if err != nil {
		return nil, err
	}
	w.stats.TwoPass = true

	repo, err := git.PlainOpen(w.Path)
	if err != nil {
		return nil, gitctxerr.WalkerError("failed to open repository", err)
	}
	for i := range records {
		content, err := readBlob(repo, plumbing.NewHash(records[i].BlobSHA))
		if err != nil {
			w.stats.Errors++
			continue
		}
		records[i].Content = content
	}
	return records, nil
}

// estimateCommitCount counts the commits reachable from every ref without
// diffing trees or reading blob content, stopping as soon as the count
// exceeds limit (if limit is positive) so the estimate is cheap even on a
// very large history.
func (w *Walker) estimateCommitCount(repo *git.Repository, limit int) (int, error) {
	refs, err := repo.References()
	if err != nil {
		return 0, err
	}

	visited := map[plumbing.Hash]bool{}
	var stack []plumbing.Hash
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		stack = append(stack, ref.Hash())
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[h] {
			continue
		}
		visited[h] = true

		c, err := repo.CommitObject(h)
		if err != nil {
			continue // not a commit (e.g. a tag object); skip
		}
		count++
		if limit > 0 && count > limit {
			return count, nil
		}

		_ = c.Parents().ForEach(func(p *object.Commit) error {
			if !visited[p.Hash] {
				stack = append(stack, p.Hash)
			}
			return nil
		})
	}
	return count, nil
}

// walk performs the single traversal shared by WalkBlobs and the two-pass
// strategy's first pass. When collectContent is false, blob bytes are never
// read from the object database; callers that need content (the two-pass
// strategy) stream it in a second, separate pass.
func (w *Walker) walk(ctx context.Context, progress ProgressFunc, collectContent bool) ([]models.BlobRecord, error) {
	w.stats = Stats{}
	repo, err := git.PlainOpen(w.Path)
	if err != nil {
		return nil, gitctxerr.WalkerError("failed to open repository", err)
	}

	headSet, headCommit, err := w.buildHeadSet(repo)
	if err != nil {
		return nil, gitctxerr.WalkerError("failed to read HEAD tree", err)
	}
	if headCommit != nil {
		w.headCommit = headCommit.Hash.String()
	}

	refs, err := repo.References()
	if err != nil {
		return nil, gitctxerr.WalkerError("failed to list refs", err)
	}

	visited := map[plumbing.Hash]bool{}
	var pending commitHeap
	heap.Init(&pending)

	seedCount := 0
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		c, err := repo.CommitObject(ref.Hash())
		if err != nil {
			return nil // not a commit-pointing ref (e.g. a tag object); skip
		}
		if visited[c.Hash] {
			return nil
		}
		visited[c.Hash] = true
		heap.Push(&pending, commitHeapItem{commit: c})
		seedCount++
		return nil
	})
	if err != nil {
		return nil, gitctxerr.WalkerError("failed to enumerate refs", err)
	}
	if seedCount == 0 && headCommit == nil {
		return nil, gitctxerr.WalkerError("repository has no HEAD and no refs", nil)
	}

	blobLocations := map[string][]models.BlobLocation{}
	blobContent := map[string][]byte{}

	visitedCommits := 0
	for pending.Len() > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		item := heap.Pop(&pending).(commitHeapItem)
		c := item.commit
		visitedCommits++
		w.stats.CommitsVisited = visitedCommits

		if visitedCommits%10 == 0 {
			invokeProgress(progress, visitedCommits)
		}

		if err := w.processCommit(repo, c, headSet, blobLocations, blobContent, collectContent); err != nil {
			w.stats.Errors++
			log.Warn().Err(err).Str("commit", c.Hash.String()).Msg("failed to process commit")
		}

		parents := c.Parents()
		err := parents.ForEach(func(p *object.Commit) error {
			if !visited[p.Hash] {
				visited[p.Hash] = true
				heap.Push(&pending, commitHeapItem{commit: p})
			}
			return nil
		})
		if err != nil {
			w.stats.Errors++
		}
	}
	invokeProgress(progress, visitedCommits)

	records := make([]models.BlobRecord, 0, len(blobLocations))
	for sha, locs := range blobLocations {
		orderLocations(locs)
		records = append(records, models.BlobRecord{
			BlobSHA:   sha,
			Content:   blobContent[sha],
			Locations: locs,
		})
	}
	w.stats.BlobsFound = len(records)
	return records, nil
}

func invokeProgress(progress ProgressFunc, n int) {
	if progress == nil {
		return
	}
	defer func() { _ = recover() }()
	progress(n)
}

// buildHeadSet enumerates (path, blobSHA) pairs present in HEAD's tree.
func (w *Walker) buildHeadSet(repo *git.Repository) (map[string]bool, *object.Commit, error) {
	head, err := repo.Head()
	if err != nil {
		return map[string]bool{}, nil, nil // detached/empty repo: no HEAD set, not fatal
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, nil, err
	}
	set := map[string]bool{}
	err = tree.Files().ForEach(func(f *object.File) error {
		set[headKey(f.Name, f.Blob.Hash.String())] = true
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return set, commit, nil
}

func headKey(path, blobSHA string) string { return path + "\x00" + blobSHA }

// processCommit diffs c against its first parent (or an empty tree for a
// root commit) and records every added/modified blob's location. Merge
// commits diff against their first parent; a change whose blob another
// parent already has at the same path is inherited, not introduced, and is
// skipped, so only blobs introduced by the merge itself get the merge commit
// as a location (marked IsMerge). Blob content is only read from the object
// database when collectContent is true.
func (w *Walker) processCommit(repo *git.Repository, c *object.Commit, headSet map[string]bool,
	blobLocations map[string][]models.BlobLocation, blobContent map[string][]byte, collectContent bool) error {

	tree, err := c.Tree()
	if err != nil {
		return err
	}

	var parentTree *object.Tree
	isMerge := c.NumParents() > 1
	if c.NumParents() > 0 {
		parent, err := c.Parents().Next()
		if err != nil {
			return err
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return err
		}
	}

	// object.DiffTree treats a nil tree as the empty tree, which is exactly
	// what a root commit (no parent) should diff against.
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return err
	}

	var otherParentTrees []*object.Tree
	for i := 1; i < len(c.ParentHashes); i++ {
		if pc, err := repo.CommitObject(c.ParentHashes[i]); err == nil {
			if pt, err := pc.Tree(); err == nil {
				otherParentTrees = append(otherParentTrees, pt)
			}
		}
	}

nextChange:
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			continue
		}
		if action == merkletrie.Delete {
			continue
		}
		to := change.To
		if to.Name == "" {
			continue
		}
		blobSHA := to.TreeEntry.Hash.String()
		for _, pt := range otherParentTrees {
			if e, err := pt.FindEntry(to.Name); err == nil && e.Hash == to.TreeEntry.Hash {
				continue nextChange // inherited from a merged-in parent
			}
		}

		loc := models.BlobLocation{
			CommitSHA:     c.Hash.String(),
			FilePath:      to.Name,
			AuthorName:    c.Author.Name,
			AuthorEmail:   c.Author.Email,
			CommitDate:    c.Committer.When.Unix(),
			CommitMessage: c.Message,
			IsHead:        headSet[headKey(to.Name, blobSHA)],
			IsMerge:       isMerge,
		}
		blobLocations[blobSHA] = append(blobLocations[blobSHA], loc)

		if !collectContent {
			continue
		}
		if _, have := blobContent[blobSHA]; !have {
			content, err := readBlob(repo, to.TreeEntry.Hash)
			if err != nil {
				return fmt.Errorf("reading blob %s: %w", blobSHA, err)
			}
			blobContent[blobSHA] = content
		}
	}
	return nil
}

func readBlob(repo *git.Repository, hash plumbing.Hash) ([]byte, error) {
	blob, err := repo.BlobObject(hash)
	if err != nil {
		return nil, err
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// orderLocations sorts locations HEAD first, then by commit date descending.
func orderLocations(locs []models.BlobLocation) {
	sort.SliceStable(locs, func(i, j int) bool { return less(locs[i], locs[j]) })
}

func less(a, b models.BlobLocation) bool {
	if a.IsHead != b.IsHead {
		return a.IsHead
	}
	return a.CommitDate > b.CommitDate
}
