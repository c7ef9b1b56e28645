package llm

import (
	"context"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/answer"
)

const (
	mockDefault       = "This is a simulated response for testing purposes."
	mockReact         = "React is a JavaScript library for building user interfaces. It uses a component-based architecture and a virtual DOM for efficient rendering. The virtual DOM is a lightweight copy of the actual DOM, which React uses to compute the most efficient way to update the UI when state changes."
	mockAccessibility = "Web accessibility ensures that websites are usable by people with disabilities. Key principles include providing text alternatives for non-text content, creating content that can be presented in different ways, making content easier to see and hear, providing enough time for users to read and use content, and making functionality available from a keyboard."
	mockCSS           = "CSS (Cascading Style Sheets) is used to style and layout web pages. Modern CSS features include Flexbox and Grid for advanced layouts, CSS Variables for reusable values, and Media Queries for responsive design. Best practices include using a consistent naming convention like BEM, organizing styles logically, and minimizing specificity conflicts."
)

const mockNavBar = "```javascript\n" + `// Responsive Navigation Component
import React, { useState } from 'react';
import './NavBar.css';

function NavBar() {
  const [isOpen, setIsOpen] = useState(false);

  const toggleMenu = () => {
    setIsOpen(!isOpen);
  };

  return (
    <nav className="navbar">
      <div className="navbar-brand">
        <a href="/" className="logo">MyWebsite</a>
        <button
          className="navbar-toggle"
          onClick={toggleMenu}
          aria-label="Toggle navigation menu"
          aria-expanded={isOpen}
        >
          <span className="icon-bar"></span>
          <span className="icon-bar"></span>
          <span className="icon-bar"></span>
        </button>
      </div>

      <div className={` + "`navbar-menu ${isOpen ? 'active' : ''}`" + `}>
        <ul className="navbar-links">
          <li><a href="/">Home</a></li>
          <li><a href="/about">About</a></li>
          <li><a href="/services">Services</a></li>
          <li><a href="/contact">Contact</a></li>
        </ul>
      </div>
    </nav>
  );
}

export default NavBar;
` + "```" + `

This responsive navigation component includes:

1. State management: Using useState hook to track if the mobile menu is open or closed
2. Toggle functionality: A button that toggles the menu state when clicked
3. Conditional classes: The 'active' class is applied to the navbar-menu when isOpen is true
4. Accessibility: Proper ARIA attributes to make the navigation accessible
5. Mobile-first approach: The component works on small screens and can be styled to adapt to larger screens`

const mockComponent = "```javascript\n" + `// Generic component example
import React, { useState, useEffect } from 'react';

function ExampleComponent({ initialData }) {
  const [data, setData] = useState(initialData);
  const [loading, setLoading] = useState(false);
  const [error, setError] = useState(null);

  useEffect(() => {
    const fetchData = async () => {
      setLoading(true);
      try {
        const response = await fetch('https://api.example.com/data');
        const result = await response.json();
        setData(result);
        setError(null);
      } catch (err) {
        setError('Failed to fetch data');
        console.error(err);
      } finally {
        setLoading(false);
      }
    };

    fetchData();
  }, []);

  if (loading) return <p>Loading...</p>;
  if (error) return <p>Error: {error}</p>;

  return (
    <div className="example-component">
      <h2>Data Display</h2>
      <pre>{JSON.stringify(data, null, 2)}</pre>
    </div>
  );
}

export default ExampleComponent;
` + "```" + `

This is a generic React component that demonstrates several key patterns:

1. State management: Using useState for component state
2. Side effects: Using useEffect for data fetching
3. Error handling: Managing loading and error states
4. Conditional rendering: Showing different UI based on state
5. Props usage: Accepting and utilizing props`

// Mock answers from a fixed set of canned responses. It never touches the
// network and is used for demos and tests.
type Mock struct {
	// Delay simulates provider latency; the wait honours ctx.
	Delay time.Duration
}

var _ answer.Generator = (*Mock)(nil)

func (m *Mock) Generate(ctx context.Context, _, prompt string) (string, error) {
	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", answer.Classify(ctx.Err())
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return "", answer.Classify(err)
	}

	lower := strings.ToLower(prompt)
	if strings.Contains(prompt, answer.CodingInstruction) {
		if strings.Contains(lower, "navigation") {
			return mockNavBar, nil
		}
		return mockComponent, nil
	}

	switch {
	case strings.Contains(lower, "react"):
		return mockReact, nil
	case strings.Contains(lower, "accessibility"):
		return mockAccessibility, nil
	case strings.Contains(lower, "css"):
		return mockCSS, nil
	default:
		return mockDefault, nil
	}
}
