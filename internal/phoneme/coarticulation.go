package phoneme

// coarticulationRules maps an ordered adjacent phoneme pair ("left_right")
// to the influence the right neighbor has on the left vector. Coverage is
// intentionally partial: pairs without a rule are left unmodified.
var coarticulationRules = map[string]float64{
	"m_aa": 0.3,
	"b_aa": 0.3,
	"p_ow": 0.25,
	"f_aa": 0.2,
	"t_s":  0.4,
	"s_t":  0.35,
	"n_d":  0.5,
	"d_n":  0.45,
	"k_w":  0.3,
	"l_ow": 0.25,
	"r_uw": 0.3,
	"s_iy": 0.2,
}

// Coarticulate adjusts each viseme vector toward its right neighbor where a
// pair rule exists: v[i] = v[i]*(1-w) + v[i+1]*w over the union of channels.
// The blend is convex, so every resulting weight stays between the two
// source weights. The input slice is modified in place and returned.
func Coarticulate(phonemes []string, vectors []Vector) []Vector {
	n := len(vectors)
	if len(phonemes) < n {
		n = len(phonemes)
	}

	for i := 0; i+1 < n; i++ {
		w, ok := coarticulationRules[phonemes[i]+"_"+phonemes[i+1]]
		if !ok {
			continue
		}
		vectors[i] = blend(vectors[i], vectors[i+1], w)
	}

	return vectors
}

func blend(a, b Vector, w float64) Vector {
	out := make(Vector, len(a)+len(b))
	for c, av := range a {
		out[c] = av * (1 - w)
	}
	for c, bv := range b {
		out[c] += bv * w
	}
	for c, v := range out {
		if v <= 0 {
			delete(out, c)
			continue
		}
		out[c] = clamp01(v)
	}
	return out
}
