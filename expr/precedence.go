package expr

import "github.com/deepnoodle-ai/loom/internal/token"

// Precedence order for operators
const (
	_ int = iota
	LOWEST
	ASSIGNMENT  // =
	TERNARY     // ? :
	NULLISH     // ??
	OR          // ||
	AND         // &&
	EQUALS      // == or !=
	LESSGREATER // > or <
	SUM         // + or -
	PRODUCT     // *, /, or %
	POWER       // **
	PREFIX      // -x or !x
	CALL        // fn(x)
	INDEX       // items[i], obj.attr
	OPTCHAIN    // ?.
)

// Precedences for each token type
var precedences = map[token.Type]int{
	token.ASSIGN:        ASSIGNMENT,
	token.QUESTION:      TERNARY,
	token.NULLISH:       NULLISH,
	token.OR:            OR,
	token.AND:           AND,
	token.EQ:            EQUALS,
	token.EQ_STRICT:     EQUALS,
	token.NOT_EQ:        EQUALS,
	token.NOT_EQ_STRICT: EQUALS,
	token.LT:            LESSGREATER,
	token.LT_EQUALS:     LESSGREATER,
	token.GT:            LESSGREATER,
	token.GT_EQUALS:     LESSGREATER,
	token.PLUS:          SUM,
	token.MINUS:         SUM,
	token.SLASH:         PRODUCT,
	token.ASTERISK:      PRODUCT,
	token.MOD:           PRODUCT,
	token.POW:           POWER,
	token.LPAREN:        CALL,
	token.PLUS_PLUS:     CALL,
	token.MINUS_MINUS:   CALL,
	token.PERIOD:        INDEX,
	token.LBRACKET:      INDEX,
	token.QUESTION_DOT:  OPTCHAIN,
}
