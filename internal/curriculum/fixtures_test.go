package curriculum_test

// twoModuleDoc has two modules, three steps and no resources.
const twoModuleDoc = `{
  "skill": "Rust",
  "experienceLevel": "beginner",
  "curriculum": {
    "title": "Rust from Zero",
    "description": "Learn the Rust fundamentals.",
    "modules": [
      {
        "title": "Getting Started",
        "description": "Install the toolchain and write a first program.",
        "steps": [
          {"title": "Install rustup", "description": "Set up the toolchain.", "estimated_time": "30 minutes"},
          {"title": "Hello, world", "description": "Build and run with cargo."}
        ],
        "assignment": {"title": "CLI greeter", "description": "Write a program that greets its first argument."}
      },
      {
        "title": "Ownership",
        "description": "Moves, borrows and lifetimes.",
        "steps": [
          {"title": "Borrowing", "description": "Shared and mutable references."}
        ]
      }
    ]
  }
}`

// fencedTwoModuleDoc is twoModuleDoc as a model typically returns it:
// inside a json fence with trailing commas.
const fencedTwoModuleDoc = "```json\n" + `{
  "skill": "Rust",
  "experienceLevel": "beginner",
  "curriculum": {
    "title": "Rust from Zero",
    "description": "Learn the Rust fundamentals.",
    "modules": [
      {
        "title": "Getting Started",
        "description": "Install the toolchain and write a first program.",
        "steps": [
          {"title": "Install rustup", "description": "Set up the toolchain.", "estimated_time": "30 minutes"},
          {"title": "Hello, world", "description": "Build and run with cargo."},
        ],
        "assignment": {"title": "CLI greeter", "description": "Write a program that greets its first argument.",},
      },
      {
        "title": "Ownership",
        "description": "Moves, borrows and lifetimes.",
        "steps": [
          {"title": "Borrowing", "description": "Shared and mutable references."}
        ],
      },
    ]
  }
}` + "\n```"
