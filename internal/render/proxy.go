package render

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attributes that make a client load a resource without the user asking.
var resourceAttributes = map[string]bool{
	"src":        true,
	"background": true,
	"poster":     true,
}

func (r *Renderer) rewrite(markup string) (string, error) {
	context := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return "", errors.Wrap(err, "could not parse sanitized markup")
	}

	var builder strings.Builder
	for _, node := range nodes {
		r.rewriteNode(node)
		if err := html.Render(&builder, node); err != nil {
			return "", errors.Wrap(err, "could not render markup")
		}
	}

	return builder.String(), nil
}

func (r *Renderer) rewriteNode(node *html.Node) {
	if node.Type == html.ElementNode {
		attributes := node.Attr[:0]
		for _, attribute := range node.Attr {
			key := strings.ToLower(attribute.Key)

			switch {
			case resourceAttributes[key]:
				value, ok := r.Proxy(attribute.Val)
				if !ok {
					continue
				}
				attribute.Val = value

			case key == "srcset":
				value := r.proxySourceSet(attribute.Val)
				if value == "" {
					continue
				}
				attribute.Val = value
			}

			attributes = append(attributes, attribute)
		}
		node.Attr = attributes
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		r.rewriteNode(child)
	}
}

// Proxy returns the url a resource should be loaded from. Inline data and
// cid references are kept, remote urls go through the image proxy and
// everything else is dropped.
func (r *Renderer) Proxy(value string) (string, bool) {
	value = strings.TrimSpace(value)
	lower := strings.ToLower(value)

	switch {
	case strings.HasPrefix(lower, "data:"), strings.HasPrefix(lower, "cid:"):
		return value, true

	case strings.HasPrefix(lower, "//"):
		value = "https:" + value

	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):

	default:
		return "", false
	}

	if r.proxy == "" {
		return "", false
	}
	return r.proxy + url.QueryEscape(value), true
}

// Rewrites every candidate of a srcset, dropping the ones that can not be
// proxied.
func (r *Renderer) proxySourceSet(value string) string {
	var candidates []string
	for _, candidate := range strings.Split(value, ",") {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}

		// Inline data can not be told apart from the separator here.
		if strings.HasPrefix(strings.ToLower(fields[0]), "data:") {
			continue
		}

		proxied, ok := r.Proxy(fields[0])
		if !ok {
			continue
		}
		fields[0] = proxied
		candidates = append(candidates, strings.Join(fields, " "))
	}

	return strings.Join(candidates, ", ")
}
