// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

const (
	// ExtensionNotFoundId is shown when a requested extension is unknown.
	ExtensionNotFoundId Id = iota + 1
	// FeatureNotFoundId is shown when a requested feature is unknown.
	FeatureNotFoundId
	// ManifestParseErrorId is shown for invalid extension manifests.
	ManifestParseErrorId
	// DependencyCycleId is shown when feature dependencies form a cycle.
	DependencyCycleId
	// DuplicateFeatureId is shown when two features share an id.
	DuplicateFeatureId
	// DuplicateExtensionId is shown when two modules resolve to the same extension id.
	DuplicateExtensionId
	// ConfigLoadFailedId is shown when the configuration file cannot be loaded.
	ConfigLoadFailedId
)

type (
	// Id identifies a catalog page.
	//
	//nolint:revive // Id matches the catalog's public naming
	Id int

	// MarkdownMsg is the Markdown body of a catalog page.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	//
	//nolint:revive // HttpLink matches the catalog's public naming
	HttpLink string

	// Issue is one catalog page.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

var (
	render = glamour.Render

	extensionNotFoundIssue = &Issue{
		id: ExtensionNotFoundId,
		mdMsg: `
# Extension not found!

No loaded extension has this id.

## Things you can try:
- List the loaded extensions:
~~~
$ extman extensions
~~~
- Check that the extension directory ends in ` + "`.extmod`" + ` and sits directly in a search path
- Check that the directory contains ` + "`extension.cue`, `extension.toml` or `extension.yaml`" + `
- Run ` + "`extman validate`" + ` to see modules that were skipped`,
	}

	featureNotFoundIssue = &Issue{
		id: FeatureNotFoundId,
		mdMsg: `
# Feature not found!

No loaded extension declares a feature with this id.

## Things you can try:
- List every feature in load order:
~~~
$ extman features
~~~
- A manifest without a ` + "`features`" + ` list declares one feature named after the extension id`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Invalid extension manifest!

An extension manifest could not be parsed, so the extension was skipped.

## Things you can try:
- Compare the manifest with this minimal example:
~~~cue
id:   "Acme.Blog"
name: "Blog"
features: [
	{id: "Acme.Blog"},
	{id: "Acme.Blog.Comments", dependencies: ["Acme.Blog"]},
]
~~~
- Feature ids must be unique within the manifest and must not depend on themselves
- Unknown fields are rejected in every format`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Feature dependencies form a loop, so no load order satisfies them.

## Things you can try:
- Follow the cycle printed above and remove one of its dependencies
- Move the shared code into a new feature both sides can depend on
- Remember that theme features are ordered after every module feature`,
	}

	duplicateFeatureIssue = &Issue{
		id: DuplicateFeatureId,
		mdMsg: `
# Duplicate feature id!

Feature ids must be unique across every loaded extension.

## Things you can try:
- Rename one of the features, usually by prefixing it with its extension id
- Remove the extension that was copied into two search paths`,
	}

	duplicateExtensionIssue = &Issue{
		id: DuplicateExtensionId,
		mdMsg: `
# Duplicate extension id!

Two modules resolve to the same extension id.

## Things you can try:
- Check the ` + "`id`" + ` field of both manifests
- Remove one copy from the search paths or includes`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ extman config show
~~~
- Check the CUE syntax and field names:
~~~cue
search_paths: ["/srv/extensions"]
discovery: max_parallelism: 4
log: {level: "info", format: "text"}
~~~`,
	}

	issues = map[Id]*Issue{
		extensionNotFoundIssue.Id():  extensionNotFoundIssue,
		featureNotFoundIssue.Id():    featureNotFoundIssue,
		manifestParseErrorIssue.Id(): manifestParseErrorIssue,
		dependencyCycleIssue.Id():    dependencyCycleIssue,
		duplicateFeatureIssue.Id():   duplicateFeatureIssue,
		duplicateExtensionIssue.Id(): duplicateExtensionIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
	}
)

// Id returns the catalog id.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the Markdown body.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns documentation links.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// ExtLinks returns external links.
func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the page for a terminal. stylePath is a glamour style name
// such as "dark" or "notty".
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

// Values returns every catalog page, ordered by id.
func Values() []*Issue {
	values := slices.Collect(maps.Values(issues))
	slices.SortFunc(values, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return values
}

// Get returns the page for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
