package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

const tagsPrefix = "refs/tags/"

// CreateTag creates or updates a lightweight tag ref under refs/tags/.
// Without force an existing tag is AlreadyExists.
func (r *Repo) CreateTag(name string, target object.Hash, force bool) error {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	if !r.Store.Has(target) {
		return twigerr.Errorf(twigerr.ErrObjectNotFound, "create tag: target %s is not in the store", target)
	}
	if err := r.writeTagRef(name, target, "tag: "+name, force); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// CreateAnnotatedTag writes a tag object naming target and points
// refs/tags/<name> at it.
func (r *Repo) CreateAnnotatedTag(name string, target object.Hash, tagger object.Identity, message string, force bool) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return "", fmt.Errorf("create annotated tag: %w", err)
	}
	if strings.TrimSpace(message) == "" {
		return "", twigerr.Errorf(twigerr.ErrInvalidArgument, "create annotated tag: message is required")
	}
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}

	targetType, _, err := r.Store.Read(target)
	if err != nil {
		return "", fmt.Errorf("create annotated tag: read target %s: %w", target, err)
	}

	if !force {
		if _, ok, err := r.ReadRef(tagsPrefix + name); err != nil {
			return "", fmt.Errorf("create annotated tag: %w", err)
		} else if ok {
			return "", twigerr.Errorf(twigerr.ErrAlreadyExists, "create annotated tag: tag %q already exists", name)
		}
	}

	if tagger.When.IsZero() {
		tagger.When = r.clock()
	}
	tagHash, err := r.Store.WriteTag(&object.TagObj{
		Object:  target,
		Type:    targetType,
		Name:    name,
		Tagger:  tagger,
		Message: message,
	})
	if err != nil {
		return "", fmt.Errorf("create annotated tag: write tag object: %w", err)
	}

	if err := r.writeTagRef(name, tagHash, "tag: "+name, force); err != nil {
		return "", fmt.Errorf("create annotated tag: %w", err)
	}
	return tagHash, nil
}

func (r *Repo) writeTagRef(name string, h object.Hash, reason string, force bool) error {
	if force {
		return r.updateRefCAS(tagsPrefix+name, h, reason)
	}
	err := r.updateRefCAS(tagsPrefix+name, h, reason, "")
	if errors.Is(err, ErrRefCASMismatch) {
		return twigerr.Errorf(twigerr.ErrAlreadyExists, "tag %q already exists", name)
	}
	return err
}

// DeleteTag removes a tag ref from refs/tags/.
func (r *Repo) DeleteTag(name string) error {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err := r.DeleteRef(tagsPrefix + name); err != nil {
		return fmt.Errorf("delete tag %q: %w", name, err)
	}
	return nil
}

// ResolveTag returns what refs/tags/<name> holds: a tag object for an
// annotated tag, the tagged object otherwise.
func (r *Repo) ResolveTag(name string) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return "", fmt.Errorf("resolve tag: %w", err)
	}
	resolved, err := r.ResolveRef(tagsPrefix + name)
	if err != nil {
		return "", fmt.Errorf("resolve tag: %w", err)
	}
	if resolved.Hash == "" {
		return "", twigerr.Errorf(twigerr.ErrUnresolvedRef, "resolve tag: tag %q does not exist", name)
	}
	return resolved.Hash, nil
}

// ListTags lists tag names sorted alphabetically.
func (r *Repo) ListTags() ([]string, error) {
	refs, err := r.ListTagsWithHashes()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListTagsWithHashes returns tag name -> ref hash.
func (r *Repo) ListTagsWithHashes() (map[string]object.Hash, error) {
	refs, err := r.ListRefs("tags")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	out := make(map[string]object.Hash, len(refs))
	for full, hash := range refs {
		out[strings.TrimPrefix(full, "tags/")] = hash
	}
	return out, nil
}

func validateTagName(name string) error {
	if err := validateRefPath(name); err != nil {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "invalid tag name %q: %v", name, err)
	}
	return nil
}
