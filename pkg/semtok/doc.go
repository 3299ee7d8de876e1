/*
Package semtok turns classified spans into LSP semantic tokens.

Two sources feed it:

	   Source Text              Compile Result
	        |                         |
	        v                         v
	+--------------+        +------------------+
	|  raw lexer   |        |  position.Index  |
	+--------------+        +------------------+
	        |                         |
	 keywords, comments,       types, methods,
	 strings, numbers          macros, namespaces
	        |                         |
	        +-----------+-------------+
	                    |
	                  Merge
	                    |
	                    v
	            relative 5-tuples

Lexical tokens are available the moment a buffer changes. Index tokens
appear once a compile pass has published the file and win wherever the two
overlap. Spans never cross a line; multi-line strings and block comments are
split per line.
*/
package semtok
